// Package security 提供上传内容的安全校验。
package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// allowedExtensions 允许的上传扩展名白名单
var allowedExtensions = map[string]struct{}{
	// 图片
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".webp": {}, ".bmp": {}, ".svg": {},
	// 文档
	".pdf": {}, ".doc": {}, ".docx": {}, ".txt": {}, ".rtf": {}, ".odt": {},
	// 表格
	".xls": {}, ".xlsx": {}, ".csv": {}, ".ods": {},
	// 演示
	".ppt": {}, ".pptx": {}, ".odp": {},
	// 压缩包
	".zip": {}, ".rar": {}, ".7z": {},
	// 音视频
	".mp3": {}, ".mp4": {}, ".wav": {}, ".avi": {}, ".mov": {},
}

// blockedExtensions 明确拒绝的危险扩展名，优先于白名单检查
var blockedExtensions = map[string]struct{}{
	".exe": {}, ".dll": {}, ".bat": {}, ".cmd": {}, ".com": {}, ".scr": {}, ".msi": {},
	".sh": {}, ".bash": {}, ".ps1": {}, ".vbs": {}, ".js": {}, ".jse": {},
	".iso": {}, ".img": {}, ".jar": {}, ".apk": {}, ".deb": {}, ".rpm": {},
	".xlsm": {}, ".docm": {}, ".pptm": {},
}

// suspiciousPatterns 文件名中禁止出现的字符序列
var suspiciousPatterns = []string{"..", "/", "\\", "\x00", "<", ">", "|", "*", "?"}

// ValidationError 上传校验失败，消息可直接透出给客户端
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationErrorf(format string, args ...interface{}) *ValidationError {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// NewValidationError 构造一个上传校验错误
func NewValidationError(msg string) *ValidationError {
	return &ValidationError{msg: msg}
}

// ValidateUpload 校验上传文件的文件名、扩展名和大小
//
// 检查顺序：危险扩展名 -> 白名单 -> 大小 -> 文件名字符。
// 所有失败都返回 *ValidationError。
func ValidateUpload(filename string, size, maxSize int64) error {
	ext := strings.ToLower(filepath.Ext(filename))

	if _, blocked := blockedExtensions[ext]; blocked {
		return validationErrorf("file type '%s' is not allowed for security reasons", ext)
	}
	if _, allowed := allowedExtensions[ext]; !allowed {
		return validationErrorf("file type '%s' is not supported", ext)
	}

	if size > maxSize {
		return validationErrorf("file too large (%.1fMB), maximum: %dMB",
			float64(size)/(1024*1024), maxSize/(1024*1024))
	}
	if size == 0 {
		return validationErrorf("file is empty")
	}

	for _, pattern := range suspiciousPatterns {
		if strings.Contains(filename, pattern) {
			return validationErrorf("invalid characters in filename")
		}
	}
	return nil
}

// SafeExtension 返回文件名的小写扩展名，仅当其通过扩展名校验
func SafeExtension(filename string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(filename))
	if _, blocked := blockedExtensions[ext]; blocked {
		return "", false
	}
	if _, allowed := allowedExtensions[ext]; !allowed {
		return "", false
	}
	return ext, true
}
