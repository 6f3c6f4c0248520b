package keyer

import (
	"fmt"
	"strings"
)

// Mode 背景色类别
type Mode int

const (
	NearBlack Mode = iota
	NearWhite
)

const (
	DefaultBlackTolerance = 30
	DefaultWhiteTolerance = 200
)

// ParseMode 解析 black / near-black / white / near-white
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "black", "near-black", "nearblack":
		return NearBlack, nil
	case "white", "near-white", "nearwhite":
		return NearWhite, nil
	}
	return 0, fmt.Errorf("unknown key mode %q", s)
}

func (m Mode) String() string {
	switch m {
	case NearBlack:
		return "black"
	case NearWhite:
		return "white"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// DefaultTolerance 黑底 30，白底 200
func (m Mode) DefaultTolerance() int {
	if m == NearWhite {
		return DefaultWhiteTolerance
	}
	return DefaultBlackTolerance
}

// direction 黑底比较 channel < t，白底比较 channel > t
// 统一成 sign*(c - t) > 0
func (m Mode) direction() int {
	if m == NearWhite {
		return 1
	}
	return -1
}

// Match 三个通道都严格越过阈值才算背景，等于阈值不算
func (m Mode) Match(r, g, b uint8, tolerance int) bool {
	d := m.direction()
	return d*(int(r)-tolerance) > 0 &&
		d*(int(g)-tolerance) > 0 &&
		d*(int(b)-tolerance) > 0
}
