// Copyright (c) 2022 NTT Communications Corporation
//
// This software is released under the MIT License.
// see https://github.com/nttcom/l2info/blob/main/LICENSE

package snapshot

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/nttcom/l2info/internal/pkg/layer2"
)

var ErrNoOrigin = errors.New("no origin provided")

// Command runs one text command against db:
//
//	export
//	import <json>
//	replace <origin> <json>
//
// export writes to out.
func Command(db *layer2.DB, param string, out io.Writer) error {
	cmd, rest := nextWord(param)
	switch cmd {
	case "export":
		return Write(db, out)
	case "import":
		return Import(db, []byte(rest))
	case "replace":
		name, text := nextWord(rest)
		return Replace(db, name, []byte(text))
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// nextWord splits s at the first run of whitespace after its first word.
func nextWord(s string) (string, string) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimLeftFunc(s[i:], unicode.IsSpace)
}

// Replace drops all data of the named origin and imports data in its place.
func Replace(db *layer2.DB, name string, data []byte) error {
	if name == "" {
		return ErrNoOrigin
	}
	return db.Update(func(tx *layer2.Tx) error {
		if o, ok := tx.Origins().Get(name); ok {
			tx.RemoveOrigin(o)
		}
		return Apply(tx, data)
	})
}

// RemoveOrigin drops all data of the named origin. It reports whether the
// origin was known.
func RemoveOrigin(db *layer2.DB, name string) bool {
	o, ok := db.Origins().Get(name)
	if !ok {
		return false
	}
	_ = db.Update(func(tx *layer2.Tx) error {
		tx.RemoveOrigin(o)
		return nil
	})
	return true
}
