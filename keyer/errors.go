package keyer

import (
	"errors"
	"fmt"
)

// Kind 错误类别
type Kind int

const (
	KindIO Kind = iota + 1
	KindDecode
	KindEncode
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindDecode:
		return "decode"
	case KindEncode:
		return "encode"
	}
	return "unknown"
}

// Error 统一的处理错误，包装底层原因
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind 判断 err 链上是否有指定类别的 *Error
func IsKind(err error, kind Kind) bool {
	var ke *Error
	return errors.As(err, &ke) && ke.Kind == kind
}

// KindOf 返回 err 链上第一个 *Error 的类别，没有则为 0
func KindOf(err error) Kind {
	var ke *Error
	if errors.As(err, &ke) {
		return ke.Kind
	}
	return 0
}
