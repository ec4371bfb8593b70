package gba

import "bytes"

// BackupType identifies the cartridge save media.
type BackupType int

// Order matches the ID string table used for detection.
const (
	BackupEEPROM BackupType = iota
	BackupSRAM
	BackupFlash
	BackupFlash512
	BackupFlash1M
	BackupNone
)

var backupIDs = []string{"EEPROM", "SRAM", "FLASH_", "FLASH512_", "FLASH1M_"}

// String returns the display name of the backup type.
func (b BackupType) String() string {
	switch b {
	case BackupEEPROM:
		return "EEPROM"
	case BackupSRAM:
		return "SRAM"
	case BackupFlash:
		return "Flash"
	case BackupFlash512:
		return "Flash512"
	case BackupFlash1M:
		return "Flash1M"
	default:
		return "None"
	}
}

// Size returns the storage size in bytes for the backup type.
func (b BackupType) Size() int {
	switch b {
	case BackupEEPROM:
		return 8 * 1024
	case BackupSRAM:
		return 32 * 1024
	case BackupFlash, BackupFlash512:
		return 64 * 1024
	case BackupFlash1M:
		return 128 * 1024
	default:
		return 0
	}
}

// DetectBackup scans the ROM for the library ID strings games embed to
// identify their save media. The first ID in table order wins.
func DetectBackup(rom []byte) BackupType {
	for i, id := range backupIDs {
		if bytes.Contains(rom, []byte(id)) {
			return BackupType(i)
		}
	}
	return BackupNone
}

// backup is linear byte storage mapped at 0x0E000000. Flash command
// sequences and the EEPROM serial protocol are not modelled.
type backup struct {
	kind  BackupType
	data  []byte
	dirty bool
}

func newBackup(kind BackupType) *backup {
	data := make([]byte, kind.Size())
	for i := range data {
		data[i] = 0xFF
	}
	return &backup{kind: kind, data: data}
}

func (b *backup) read(off uint32) byte {
	if len(b.data) == 0 {
		return 0xFF
	}
	return b.data[int(off)%len(b.data)]
}

func (b *backup) write(off uint32, v byte) {
	if len(b.data) == 0 {
		return
	}
	b.data[int(off)%len(b.data)] = v
	b.dirty = true
}
