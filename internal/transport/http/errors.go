package httptransport

import (
	"sandeshaa/backend/internal/domain"
)

// 校验错误映射表（业务错误 -> 客户端提示）
var errorMessages = map[error]string{
	domain.ErrUsernameTooShort: "username too short (min 3 chars)",
	domain.ErrUsernameTooLong:  "username too long (max 32 chars)",
	domain.ErrInvalidUsername:  "username must start with a letter and contain only letters, digits, '.', '_', '-'",
	domain.ErrPasswordTooShort: "password too short (min 8 chars)",
	domain.ErrPasswordTooLong:  "password too long (max 128 chars)",
	domain.ErrPasswordTooWeak:  "password must contain both letters and digits",
}

// GetErrorMessage 获取错误对应的客户端提示
func GetErrorMessage(err error) string {
	if msg, ok := errorMessages[err]; ok {
		return msg
	}
	return err.Error()
}

// 通用错误消息
const (
	MsgInvalidRequest = "invalid request body"

	MsgInvalidCredentials = "invalid username or password"
	MsgAccountDisabled    = "account is disabled"
	MsgTokenInvalid       = "invalid or expired token"

	MsgUserNotFound = "user not found"

	MsgConversationListFailed = "failed to list conversations"
	MsgHistoryFailed          = "failed to load message history"
	MsgClearFailed            = "failed to clear conversation"

	MsgFileNotFound     = "file not found"
	MsgFileGone         = "file no longer available"
	MsgFileAccessDenied = "you are not a party to this file"
	MsgFileUploadFailed = "file upload failed"

	MsgInternalError = "internal server error, try again later"
)
