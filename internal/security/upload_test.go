package security

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMaxSize = 10 * 1024 * 1024

func TestValidateUpload(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		size     int64
		wantErr  string
	}{
		{"合法图片", "photo.jpg", 1024, ""},
		{"合法文档", "report.PDF", 2048, ""},
		{"危险扩展名", "payload.exe", 1024, "not allowed"},
		{"宏文档", "macro.xlsm", 1024, "not allowed"},
		{"白名单外扩展名", "notes.xyz", 1024, "not supported"},
		{"无扩展名", "README", 1024, "not supported"},
		{"超出大小限制", "big.zip", testMaxSize + 1, "file too large"},
		{"空文件", "empty.txt", 0, "file is empty"},
		{"路径穿越", "../../etc/passwd.txt", 1024, "invalid characters"},
		{"路径分隔符", "dir/file.txt", 1024, "invalid characters"},
		{"空字节", "evil\x00.txt", 1024, "invalid characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUpload(tt.filename, tt.size, testMaxSize)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)

			// 所有校验失败都必须是可透出的 ValidationError
			var validationErr *ValidationError
			assert.True(t, errors.As(err, &validationErr))
		})
	}
}

func TestSafeExtension(t *testing.T) {
	t.Run("合法扩展名小写返回", func(t *testing.T) {
		ext, ok := SafeExtension("Photo.JPG")
		assert.True(t, ok)
		assert.Equal(t, ".jpg", ext)
	})

	t.Run("危险扩展名被拒", func(t *testing.T) {
		_, ok := SafeExtension("run.sh")
		assert.False(t, ok)
	})

	t.Run("未知扩展名被拒", func(t *testing.T) {
		_, ok := SafeExtension("data.xyz")
		assert.False(t, ok)
	})
}
