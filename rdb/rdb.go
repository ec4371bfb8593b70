// Package rdb reads RetroArch game databases (.rdb files) and looks up
// cartridges by CRC32 or game code.
//
// An RDB file is a 16 byte header followed by one MessagePack map per
// game, terminated by a nil.
package rdb

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrFormat is returned for data that is not a readable RDB database.
var ErrFormat = errors.New("not an RDB database")

const headerSize = 0x10

var magic = []byte("RARCHDB\x00")

// Game is one database entry.
type Game struct {
	Name         string // No-Intro name, e.g. "Advance Wars (USA)"
	Description  string
	Developer    string
	Publisher    string
	ROMName      string
	Serial       string
	ReleaseMonth uint
	ReleaseYear  uint
	Size         uint64
	CRC32        uint32
	MD5          string // lower case hex
}

// DB is a parsed database indexed by CRC32 and serial.
type DB struct {
	games    []Game
	byCRC32  map[uint32]*Game
	bySerial map[string]*Game
}

// Load reads and parses the database at path.
func Load(path string) (*DB, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read RDB file: %w", err)
	}
	return Parse(data)
}

// Parse decodes an RDB image. Entries without a name or CRC are skipped.
func Parse(data []byte) (*DB, error) {
	if len(data) < headerSize || !bytes.HasPrefix(data, magic) {
		return nil, ErrFormat
	}

	d := &decoder{data: data, pos: headerSize}
	var games []Game
	for {
		b, err := d.peek()
		if err != nil {
			return nil, err
		}
		if b == mpNil {
			break
		}
		g, err := d.game()
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", len(games), err)
		}
		if g.Name != "" || g.CRC32 != 0 {
			games = append(games, g)
		}
	}

	db := &DB{
		games:    games,
		byCRC32:  make(map[uint32]*Game, len(games)),
		bySerial: make(map[string]*Game, len(games)),
	}
	for i := range db.games {
		g := &db.games[i]
		if g.CRC32 != 0 {
			db.byCRC32[g.CRC32] = g
		}
		if code := GameCode(g.Serial); code != "" {
			if _, dup := db.bySerial[code]; !dup {
				db.bySerial[code] = g
			}
		}
	}
	return db, nil
}

// FindByCRC32 returns the game with the given ROM CRC, or nil.
func (db *DB) FindByCRC32(crc uint32) *Game {
	return db.byCRC32[crc]
}

// FindByGameCode returns the first game whose serial carries the four
// character cartridge game code, or nil.
func (db *DB) FindByGameCode(code string) *Game {
	return db.bySerial[strings.ToUpper(code)]
}

// Len returns the number of games.
func (db *DB) Len() int {
	return len(db.games)
}

// GameCode extracts the four character game code from a serial such as
// "AGB-AWRE-USA". Serials that carry no code yield "".
func GameCode(serial string) string {
	s := strings.ToUpper(strings.TrimSpace(serial))
	s = strings.TrimPrefix(s, "AGB-")
	if i := strings.IndexByte(s, '-'); i >= 0 {
		s = s[:i]
	}
	if len(s) != 4 {
		return ""
	}
	return s
}

// DisplayName strips the region and revision groups from a No-Intro name.
func DisplayName(name string) string {
	if idx := strings.Index(name, " ("); idx > 0 {
		return strings.TrimSpace(name[:idx])
	}
	return name
}

func setField(g *Game, key string, v any) {
	switch key {
	case "name":
		g.Name = asString(v)
	case "description":
		g.Description = asString(v)
	case "developer":
		g.Developer = asString(v)
	case "publisher":
		g.Publisher = asString(v)
	case "rom_name":
		g.ROMName = asString(v)
	case "serial":
		g.Serial = asString(v)
	case "releasemonth":
		g.ReleaseMonth = uint(asUint(v))
	case "releaseyear":
		g.ReleaseYear = uint(asUint(v))
	case "size":
		g.Size = asUint(v)
	case "crc":
		g.CRC32 = uint32(asUint(v))
	case "md5":
		if b, ok := v.([]byte); ok {
			g.MD5 = hex.EncodeToString(b)
		} else {
			g.MD5 = strings.ToLower(asString(v))
		}
	}
}

func asString(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	}
	return ""
}

// asUint accepts integers and big-endian binary blobs of up to 8 bytes,
// which is how checksums are stored.
func asUint(v any) uint64 {
	switch v := v.(type) {
	case uint64:
		return v
	case int64:
		if v >= 0 {
			return uint64(v)
		}
	case []byte:
		if len(v) <= 8 {
			var buf [8]byte
			copy(buf[8-len(v):], v)
			return binary.BigEndian.Uint64(buf[:])
		}
	}
	return 0
}
