package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	emucore "github.com/user-none/egba/api"
)

// keyStep presses keys from frame onwards until the next step.
type keyStep struct {
	frame uint64
	keys  emucore.KeyState
}

// keyScript is a list of FRAME=KEYS steps ordered by frame.
type keyScript []keyStep

func parseKeyScript(entries []string) (keyScript, error) {
	script := make(keyScript, 0, len(entries))
	for _, e := range entries {
		at, names, ok := strings.Cut(e, "=")
		if !ok {
			return nil, fmt.Errorf("key entry %q: want FRAME=KEYS", e)
		}
		frame, err := strconv.ParseUint(strings.TrimSpace(at), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("key entry %q: bad frame: %w", e, err)
		}
		keys, err := emucore.ParseKeys(names)
		if err != nil {
			return nil, fmt.Errorf("key entry %q: %w", e, err)
		}
		script = append(script, keyStep{frame: frame, keys: keys})
	}
	sort.SliceStable(script, func(i, j int) bool { return script[i].frame < script[j].frame })
	return script, nil
}

// At returns the keys held on frame.
func (s keyScript) At(frame uint64) emucore.KeyState {
	i := sort.Search(len(s), func(i int) bool { return s[i].frame > frame })
	if i == 0 {
		return 0
	}
	return s[i-1].keys
}
