package gba

import (
	"bytes"
	"errors"
	"fmt"
	"hash/crc32"
	"strings"
)

// Cartridge header layout
const (
	headerTitle      = 0xA0
	headerGameCode   = 0xAC
	headerMakerCode  = 0xB0
	headerFixedValue = 0xB2
	headerUnitCode   = 0xB3
	headerDevice     = 0xB4
	headerVersion    = 0xBC
	headerComplement = 0xBD
	headerSize       = 0xC0

	fixedValue = 0x96

	// MaxROMSize is the size of the cartridge address window.
	MaxROMSize = 32 * 1024 * 1024
)

// Cartridge load errors
var (
	ErrROMTooSmall    = errors.New("rom smaller than cartridge header")
	ErrROMTooLarge    = errors.New("rom exceeds 32MiB")
	ErrHeaderFixed    = errors.New("cartridge header fixed value is not 0x96")
	ErrHeaderChecksum = errors.New("cartridge header complement check mismatch")
	ErrBIOSSize       = errors.New("bios must be exactly 16KiB")
	ErrEmptyBIOSOrROM = errors.New("bios and rom must not be empty")
)

// Header holds the parsed cartridge header fields.
type Header struct {
	Title      string
	GameCode   string
	MakerCode  string
	UnitCode   byte
	DeviceType byte
	Version    byte
	Complement byte
}

// Cartridge is a validated ROM image with its detected backup type.
type Cartridge struct {
	Header Header
	ROM    []byte
	CRC32  uint32
	Backup BackupType
}

// HeaderComplement computes the header complement check over 0xA0-0xBC.
func HeaderComplement(rom []byte) byte {
	var chk byte
	for i := headerTitle; i < headerComplement; i++ {
		chk -= rom[i]
	}
	return chk - 0x19
}

// ParseHeader validates and decodes the cartridge header.
func ParseHeader(rom []byte) (Header, error) {
	if len(rom) < headerSize {
		return Header{}, ErrROMTooSmall
	}
	if rom[headerFixedValue] != fixedValue {
		return Header{}, ErrHeaderFixed
	}
	if got, want := rom[headerComplement], HeaderComplement(rom); got != want {
		return Header{}, fmt.Errorf("%w: header has 0x%02X, computed 0x%02X", ErrHeaderChecksum, got, want)
	}
	return Header{
		Title:      headerString(rom[headerTitle:headerGameCode]),
		GameCode:   headerString(rom[headerGameCode:headerMakerCode]),
		MakerCode:  headerString(rom[headerMakerCode:headerFixedValue]),
		UnitCode:   rom[headerUnitCode],
		DeviceType: rom[headerDevice],
		Version:    rom[headerVersion],
		Complement: rom[headerComplement],
	}, nil
}

func headerString(b []byte) string {
	return strings.TrimRight(string(bytes.TrimRight(b, "\x00")), " ")
}

// LoadCartridge validates rom and detects its backup media. The ROM bytes
// are copied so the caller may reuse its buffer.
func LoadCartridge(rom []byte) (*Cartridge, error) {
	if len(rom) > MaxROMSize {
		return nil, ErrROMTooLarge
	}
	header, err := ParseHeader(rom)
	if err != nil {
		return nil, err
	}
	data := make([]byte, len(rom))
	copy(data, rom)
	return &Cartridge{
		Header: header,
		ROM:    data,
		CRC32:  crc32.ChecksumIEEE(data),
		Backup: DetectBackup(data),
	}, nil
}
