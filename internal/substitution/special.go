package substitution

import (
	"time"

	"github.com/google/uuid"
)

// specialNames are the built-in variables computed at call time. They are
// consulted only when the caller's variables do not define the name.
var specialNames = map[string]bool{
	"timestamp": true,
	"date":      true,
	"datetime":  true,
	"uuid":      true,
	"year":      true,
	"month":     true,
	"day":       true,
}

// IsSpecialVariable reports whether name is a built-in special variable.
func IsSpecialVariable(name string) bool {
	return specialNames[name]
}

// specials lazily computes special variables once per Substitute call, so
// every {{uuid}} or {{timestamp}} in one call agrees.
type specials struct {
	now    time.Time
	values map[string]string
}

func newSpecials(now time.Time) *specials {
	return &specials{now: now}
}

func (s *specials) get(name string) (string, bool) {
	if !specialNames[name] {
		return "", false
	}
	if s.values == nil {
		s.values = make(map[string]string, len(specialNames))
	}
	if v, ok := s.values[name]; ok {
		return v, true
	}

	var v string
	switch name {
	case "timestamp":
		v = s.now.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	case "date":
		v = s.now.Format("2006-01-02")
	case "datetime":
		v = s.now.Format("2006-01-02 15:04:05")
	case "uuid":
		v = uuid.NewString()
	case "year":
		v = s.now.Format("2006")
	case "month":
		v = s.now.Format("01")
	case "day":
		v = s.now.Format("02")
	}
	s.values[name] = v

	return v, true
}
