package testrom

import (
	"encoding/binary"
	"fmt"
)

// Cartridge header layout
const (
	headerTitle      = 0xA0
	headerGameCode   = 0xAC
	headerMakerCode  = 0xB0
	headerFixedValue = 0xB2
	headerComplement = 0xBD
	headerSize       = 0xC0
)

// Image describes a cartridge to build.
type Image struct {
	Title    string // up to 12 bytes
	GameCode string // 4 bytes
	Maker    string // 2 bytes
	Version  byte

	// Code is placed at 0x080000C0 and entered from the header branch.
	Code []byte

	// BackupID is appended after the code so backup detection finds it,
	// for example "SRAM_V113".
	BackupID string
}

// Build lays out the header, code and backup ID. The result passes
// header validation.
func Build(img Image) []byte {
	size := headerSize + len(img.Code) + len(img.BackupID)
	size = (size + 0x1FF) &^ 0x1FF
	rom := make([]byte, size)

	binary.LittleEndian.PutUint32(rom, Branch(false, ROMEntry, ROMEntry+headerSize))
	copy(rom[headerTitle:headerTitle+12], img.Title)
	copy(rom[headerGameCode:headerGameCode+4], img.GameCode)
	copy(rom[headerMakerCode:headerMakerCode+2], img.Maker)
	rom[headerFixedValue] = 0x96
	rom[0xBC] = img.Version
	rom[headerComplement] = Complement(rom)

	copy(rom[headerSize:], img.Code)
	copy(rom[headerSize+len(img.Code):], img.BackupID)
	return rom
}

// Complement computes the header complement check byte.
func Complement(rom []byte) byte {
	var chk byte
	for i := headerTitle; i < headerComplement; i++ {
		chk -= rom[i]
	}
	return chk - 0x19
}

// Assemble resolves p and builds a cartridge around it. p must be based
// at CodeBase.
func Assemble(img Image, p *Program) []byte {
	code, err := p.Bytes()
	if err != nil {
		panic(fmt.Sprintf("testrom: %s: %v", img.Title, err))
	}
	img.Code = code
	return Build(img)
}

// CodeBase is the load address of Image.Code.
const CodeBase = ROMEntry + headerSize
