package service

import (
	"errors"
	"fmt"
)

// Kind 机器可读的错误类别，HTTP 层据此映射状态码
type Kind string

const (
	KindNotFound            Kind = "not_found"
	KindForbidden           Kind = "forbidden"
	KindInvalidState        Kind = "invalid_state"
	KindIllegalTransition   Kind = "illegal_transition"
	KindInsufficientStock   Kind = "insufficient_stock"
	KindInsufficientBalance Kind = "insufficient_balance"
	KindInsufficientEscrow  Kind = "insufficient_escrow"
	KindValidation          Kind = "validation_error"
	KindConflict            Kind = "conflict"
)

// Error 业务错误。前置条件失败都在任何写操作之前返回，不会自动重试
type Error struct {
	Kind    Kind
	Message string

	Entity string // not_found
	Field  string // validation_error
	From   string // illegal_transition
	To     string // illegal_transition
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func NotFound(entity string) *Error {
	return &Error{Kind: KindNotFound, Entity: entity, Message: entity + " not found"}
}

func Forbidden(reason string) *Error {
	return &Error{Kind: KindForbidden, Message: reason}
}

func InvalidState(message string) *Error {
	return &Error{Kind: KindInvalidState, Message: message}
}

func IllegalTransition(from, to string) *Error {
	return &Error{
		Kind:    KindIllegalTransition,
		From:    from,
		To:      to,
		Message: fmt.Sprintf("cannot move order from %s to %s", from, to),
	}
}

func InsufficientStock(requested, available string) *Error {
	return &Error{
		Kind:    KindInsufficientStock,
		Message: fmt.Sprintf("requested %s but only %s available", requested, available),
	}
}

func InsufficientBalance(userID int64) *Error {
	return &Error{Kind: KindInsufficientBalance, Message: fmt.Sprintf("wallet balance of user %d is too low", userID)}
}

func InsufficientEscrow(userID int64) *Error {
	return &Error{Kind: KindInsufficientEscrow, Message: fmt.Sprintf("escrow balance of user %d is too low", userID)}
}

func Validation(field, message string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// KindOf 取出错误类别，非业务错误返回空串
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
