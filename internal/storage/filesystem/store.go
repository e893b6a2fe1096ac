package filesystem

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Store 文件系统 Blob 存储
//
// 保存加密文件负载。存储名由写入时间加随机后缀生成，
// 与用户提供的文件名完全解耦，杜绝路径穿越。
type Store struct {
	basePath string
}

// NewStore 创建文件系统存储实例
func NewStore(basePath string) (*Store, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path must not be empty")
	}

	absPath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("invalid base path: %w", err)
	}

	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Store{basePath: absPath}, nil
}

// Save 写入一个 Blob，返回分配的存储名
//
// ext 为原始文件扩展名（含点），只用于方便排查，不参与任何校验。
func (s *Store) Save(ext string, content io.Reader) (string, int64, error) {
	storedName, err := generateStoredName(ext)
	if err != nil {
		return "", 0, err
	}

	path := filepath.Join(s.basePath, storedName)
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create blob file: %w", err)
	}

	written, err := io.Copy(file, content)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return "", 0, fmt.Errorf("failed to write blob: %w", err)
	}

	return storedName, written, nil
}

// Open 按存储名打开一个 Blob
func (s *Store) Open(storedName string) (io.ReadCloser, error) {
	path, err := s.resolve(storedName)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, os.ErrNotExist
		}
		return nil, fmt.Errorf("failed to open blob: %w", err)
	}
	return file, nil
}

// Path 返回 Blob 的绝对路径（用于 http 文件响应）
func (s *Store) Path(storedName string) (string, error) {
	return s.resolve(storedName)
}

// Delete 删除一个 Blob
//
// Blob 不存在不算错误：保留清理要求缺失的 Blob 不中断清扫。
func (s *Store) Delete(storedName string) error {
	path, err := s.resolve(storedName)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}

// Exists 判断 Blob 是否存在
func (s *Store) Exists(storedName string) bool {
	path, err := s.resolve(storedName)
	if err != nil {
		return false
	}
	_, statErr := os.Stat(path)
	return statErr == nil
}

// resolve 校验存储名并拼出绝对路径
func (s *Store) resolve(storedName string) (string, error) {
	if storedName == "" || strings.ContainsAny(storedName, `/\`) || strings.Contains(storedName, "..") {
		return "", fmt.Errorf("invalid stored name: %q", storedName)
	}
	return filepath.Join(s.basePath, storedName), nil
}

// generateStoredName 生成唯一存储名: 20060102_150405_<16位随机hex><ext>
func generateStoredName(ext string) (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate blob name: %w", err)
	}
	ext = strings.ToLower(filepath.Ext("x" + ext)) // 只保留最后一个扩展名
	return fmt.Sprintf("%s_%s%s",
		time.Now().UTC().Format("20060102_150405"),
		hex.EncodeToString(buf),
		ext,
	), nil
}
