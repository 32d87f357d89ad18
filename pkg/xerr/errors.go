package xerr

import (
	"errors"
	"fmt"
)

// 常用错误码定义
const (
	OK                 = 200
	ServerCommonError  = 500
	RequestParamsError = 400
	DbError            = 501
	RecordNotFound     = 404
	EngineBusy         = 503

	// 业务错误码：按失败类别划分，同一类别共享一个码
	PhaseViolation    = 4001 // 当前轮次不允许该操作
	CapacityViolation = 4002 // 超出本轮可售供应
	Unauthorized      = 4003 // 调用方无权限
	Validation        = 4004 // 参数校验失败
	Timing            = 4005 // 轮次切换条件未满足
	Arithmetic        = 4006 // 整数溢出或除零
	InsufficientFunds = 4007 // 余额或授权额度不足
)

type CodeError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e *CodeError) Error() string {
	return fmt.Sprintf("ErrCode:%d, Msg:%s", e.Code, e.Msg)
}

// Is 只比较错误码，便于 errors.Is(err, xerr.ErrPhase) 这种按类别判断
func (e *CodeError) Is(target error) bool {
	t, ok := target.(*CodeError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func New(code int, msg string) error {
	return &CodeError{Code: code, Msg: msg}
}

func NewErrCode(code int) error {
	return &CodeError{Code: code, Msg: MapErrMsg(code)}
}

// Newf 带格式化的业务错误
func Newf(code int, format string, args ...any) error {
	return &CodeError{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// 类别哨兵，只用于 errors.Is 比较
var (
	ErrPhase        = &CodeError{Code: PhaseViolation}
	ErrCapacity     = &CodeError{Code: CapacityViolation}
	ErrUnauthorized = &CodeError{Code: Unauthorized}
	ErrValidation   = &CodeError{Code: Validation}
	ErrTiming       = &CodeError{Code: Timing}
	ErrArithmetic   = &CodeError{Code: Arithmetic}
	ErrInsufficient = &CodeError{Code: InsufficientFunds}
	ErrNotFound     = &CodeError{Code: RecordNotFound}
	ErrBusy         = &CodeError{Code: EngineBusy}
)

// CodeOf 取出错误链上的业务码，没有则视为服务端错误
func CodeOf(err error) int {
	if err == nil {
		return OK
	}
	var ce *CodeError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ServerCommonError
}

// MessageOf 对外只透出业务文案
func MessageOf(err error) string {
	var ce *CodeError
	if errors.As(err, &ce) {
		if ce.Msg != "" {
			return ce.Msg
		}
		return MapErrMsg(ce.Code)
	}
	return MapErrMsg(ServerCommonError)
}

func MapErrMsg(code int) string {
	switch code {
	case ServerCommonError:
		return "服务器开小差了"
	case RequestParamsError:
		return "参数错误"
	case DbError:
		return "数据库繁忙"
	case RecordNotFound:
		return "记录不存在"
	case EngineBusy:
		return "engine busy"
	case PhaseViolation:
		return "operation not allowed in current round"
	case CapacityViolation:
		return "insufficient remaining supply"
	case Unauthorized:
		return "caller is not authorized"
	case Validation:
		return "invalid argument"
	case Timing:
		return "round cannot be switched yet"
	case Arithmetic:
		return "arithmetic overflow"
	case InsufficientFunds:
		return "insufficient balance"
	default:
		return "未知错误"
	}
}
