package app

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/favbox/dock/common/hlog"
	"github.com/favbox/dock/protocol"
	"github.com/favbox/dock/protocol/consts"
	"github.com/fsnotify/fsnotify"
)

// FileHandler 以 HTTP 响应的形式返回某个文件的内容，文件修改后自动重载。
type FileHandler struct {
	Path        string
	ContentType string

	// RefreshInterval 若 > 0 则按间隔重载，反之使用 fsnotify 监听文件所在目录。
	RefreshInterval time.Duration

	mu      sync.RWMutex
	resp    []byte
	watcher *fsnotify.Watcher
	stop    chan struct{}
	once    sync.Once
}

// NewFileHandler 读取 path 并开始监视其变化。contentType 为空时使用 text/html。
func NewFileHandler(path, contentType string, refreshInterval time.Duration) (*FileHandler, error) {
	if contentType == "" {
		contentType = consts.MIMETextHtml
	}
	f := &FileHandler{
		Path:            path,
		ContentType:     contentType,
		RefreshInterval: refreshInterval,
		stop:            make(chan struct{}),
	}
	if err := f.reload(); err != nil {
		return nil, err
	}
	if err := f.startChecker(); err != nil {
		return nil, err
	}
	return f, nil
}

// Handle 返回最近一次成功加载的文件内容。可直接作为 HandlerFunc 使用。
func (f *FileHandler) Handle(ctx context.Context, req []byte) ([]byte, error) {
	f.mu.RLock()
	resp := f.resp
	f.mu.RUnlock()
	return resp, nil
}

// Close 停止监视文件。
func (f *FileHandler) Close() (err error) {
	f.once.Do(func() {
		close(f.stop)
		if f.watcher != nil {
			err = f.watcher.Close()
		}
	})
	return
}

func (f *FileHandler) reload() error {
	body, err := os.ReadFile(f.Path)
	if err != nil {
		return err
	}
	resp := protocol.NewResponse(consts.StatusOK, f.ContentType, body)
	f.mu.Lock()
	f.resp = resp
	f.mu.Unlock()
	return nil
}

func (f *FileHandler) tryReload() {
	if err := f.reload(); err != nil {
		hlog.SystemLogger().Errorf("[FileHandler] 重载文件 %s 失败，继续使用旧内容：%v", f.Path, err)
		return
	}
	hlog.SystemLogger().Debugf("[FileHandler] 文件 %s 已重载", f.Path)
}

func (f *FileHandler) startChecker() error {
	// 按指定间隔重载
	if f.RefreshInterval > 0 {
		go func() {
			hlog.SystemLogger().Debugf("[FileHandler] 文件 %s 每 %v 重载一次", f.Path, f.RefreshInterval)
			ticker := time.NewTicker(f.RefreshInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					f.tryReload()
				case <-f.stop:
					return
				}
			}
		}()
		return nil
	}

	// 监听目录而非文件本身，编辑器以重命名方式保存时也能收到事件
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err = watcher.Add(filepath.Dir(f.Path)); err != nil {
		_ = watcher.Close()
		return err
	}
	f.watcher = watcher
	target := filepath.Clean(f.Path)

	go func() {
		hlog.SystemLogger().Debugf("[FileHandler] 正在监视文件：%s", f.Path)
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					f.tryReload()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				hlog.SystemLogger().Errorf("[FileHandler] 监视文件出现错误：%v", err)
			}
		}
	}()
	return nil
}
