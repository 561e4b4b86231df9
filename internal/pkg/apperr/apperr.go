package apperr

import (
	"github.com/pkg/errors"
)

// Kind 是错误的业务分类。调用方通过 KindOf 分支处理，
// 避免 success 布尔值被悄悄忽略的问题。
type Kind int

const (
	Internal Kind = iota // 未分类的内部错误
	NotFound
	InvalidArgument
	InsufficientStock
	InvalidState
	Conflict    // 乐观锁版本冲突
	Unavailable // 传输层故障，可能是暂时的
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "NOT_FOUND"
	case InvalidArgument:
		return "INVALID_ARGUMENT"
	case InsufficientStock:
		return "INSUFFICIENT_STOCK"
	case InvalidState:
		return "INVALID_STATE"
	case Conflict:
		return "CONFLICT"
	case Unavailable:
		return "UNAVAILABLE"
	default:
		return "INTERNAL"
	}
}

// ParseKind 把 String() 的输出还原为 Kind，跨服务传递错误分类时使用。
// 不认识的值归为 Internal。
func ParseKind(s string) Kind {
	switch s {
	case "NOT_FOUND":
		return NotFound
	case "INVALID_ARGUMENT":
		return InvalidArgument
	case "INSUFFICIENT_STOCK":
		return InsufficientStock
	case "INVALID_STATE":
		return InvalidState
	case "CONFLICT":
		return Conflict
	case "UNAVAILABLE":
		return Unavailable
	default:
		return Internal
	}
}

type kindError struct {
	kind Kind
	err  error
}

func (e *kindError) Error() string { return e.err.Error() }
func (e *kindError) Unwrap() error { return e.err }
func (e *kindError) Kind() Kind    { return e.kind }

// New 创建一个带分类的错误。
func New(kind Kind, msg string) error {
	return &kindError{kind: kind, err: errors.New(msg)}
}

// Newf 创建一个带分类的格式化错误。
func Newf(kind Kind, format string, args ...interface{}) error {
	return &kindError{kind: kind, err: errors.Errorf(format, args...)}
}

// Wrap 为已有错误附加分类和上下文。err 为 nil 时返回 nil。
func Wrap(err error, kind Kind, msg string) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, err: errors.Wrap(err, msg)}
}

// KindOf 返回错误链上最近的分类，未分类时返回 Internal。
func KindOf(err error) Kind {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	return Internal
}

// Is 判断错误是否属于给定分类。
func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}

// IsTransient 判断错误是否值得重试。业务失败（库存不足、校验失败）
// 不是传输错误，重试也不会成功。
func IsTransient(err error) bool {
	switch KindOf(err) {
	case Unavailable, Internal:
		return true
	default:
		return false
	}
}
