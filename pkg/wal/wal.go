package wal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// 自己定義常用的權限常量
const (
	// rw-r--r-- (擁有者讀寫，其他人唯讀) - 適用於大多數檔案
	FileModeReadOnly fs.FileMode = 0644

	// rwxr-xr-x - 適用於目錄
	FileModeDir fs.FileMode = 0755
)

// WAL 以 JSON Lines 格式追加寫入的 Write-Ahead Log
type WAL struct {
	path string
	file *os.File
	mu   sync.Mutex
	// syncFile 刷入硬碟 (測試時可替換)
	syncFile func(f *os.File) error
}

// NewWAL 開啟或建立一個 WAL 檔案 (目錄不存在會自動建立)
// O_RDWR讀寫模式
// O_APPEND 每次寫入時自動跳到文件末尾
// O_CREATE 如果文件不存在則建立
func NewWAL(path string) (*WAL, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, FileModeDir); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, FileModeReadOnly)
	if err != nil {
		return nil, err
	}
	return &WAL{
		path:     path,
		file:     file,
		syncFile: (*os.File).Sync,
	}, nil
}

// Path 檔案路徑
func (w *WAL) Path() string {
	return w.path
}

// Write 寫入一筆資料並刷入硬碟
//
// 寫入或刷入失敗時把檔案截回寫入前的長度，
// 失敗的資料不會在重播時出現，也不會留下半行擋住之後的資料
func (w *WAL) Write(v any) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	info, err := w.file.Stat()
	if err != nil {
		return err
	}
	offset := info.Size()

	_, err = w.file.Write(buf.Bytes())
	if err == nil {
		err = w.syncFile(w.file)
	}
	if err != nil {
		if terr := w.file.Truncate(offset); terr != nil {
			return fmt.Errorf("%w (truncate to %d: %v)", err, offset, terr)
		}
		return err
	}
	return nil
}

// Sync 強制刷入硬碟
func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Sync()
}

// Close 關閉檔案
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

// ReadAll 讀取所有資料
// callback 接收一筆 JSON，避免一次將所有資料載入記憶體
// 遇到無法解析的資料時停止並回傳錯誤，之前的資料已經交給 callback
func (w *WAL) ReadAll(callback func(jsonRaw []byte) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	// 確保從頭讀取
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return err
	}

	decoder := json.NewDecoder(w.file)
	for {
		var raw json.RawMessage
		if err := decoder.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
		if err := callback(raw); err != nil {
			return err
		}
	}
	return nil
}

// Rewrite 用 records 取代整個檔案 (壓縮用)
//
// 先寫暫存檔並 fsync，再 rename 覆蓋，中途失敗原檔案不受影響
func (w *WAL) Rewrite(records ...any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	tmpPath := w.path + ".tmp"
	tmp, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, FileModeReadOnly)
	if err != nil {
		return err
	}
	encoder := json.NewEncoder(tmp)
	for _, r := range records {
		if err := encoder.Encode(r); err != nil {
			tmp.Close()
			os.Remove(tmpPath)
			return err
		}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, w.path); err != nil {
		os.Remove(tmpPath)
		return err
	}

	// 舊的 fd 指向已被取代的檔案，重新開啟
	file, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_RDWR, FileModeReadOnly)
	if err != nil {
		return fmt.Errorf("reopen wal: %w", err)
	}
	old := w.file
	w.file = file
	return old.Close()
}
