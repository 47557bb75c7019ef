package fileutil

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// FileSystem は実ファイルシステムと fs.FS を統一的に扱うインターフェース
type FileSystem interface {
	// ReadFile はファイルの内容を読み込む（大文字小文字を無視）
	ReadFile(name string) ([]byte, error)
	// FindFile は大文字小文字を無視してファイルを検索し、実際のパスを返す
	FindFile(name string) (string, error)
	// BasePath はベースパスを返す
	BasePath() string
}

// RealFS は実ファイルシステムへのアクセスを提供する
type RealFS struct {
	basePath string
}

// NewRealFS は実ファイルシステム用のFileSystemを作成する
// basePath が空の場合は name をそのまま使う
func NewRealFS(basePath string) *RealFS {
	return &RealFS{basePath: basePath}
}

func (r *RealFS) ReadFile(name string) ([]byte, error) {
	actualPath, err := r.FindFile(name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(actualPath)
}

func (r *RealFS) FindFile(name string) (string, error) {
	return ResolvePath(r.resolvePath(name))
}

func (r *RealFS) BasePath() string {
	return r.basePath
}

func (r *RealFS) resolvePath(name string) string {
	if r.basePath == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(r.basePath, name)
}

// IOFS は fs.FS（embed.FS や fstest.MapFS）へのアクセスを提供する
type IOFS struct {
	fsys     fs.FS
	basePath string
}

// NewIOFS は fs.FS 用のFileSystemを作成する
func NewIOFS(fsys fs.FS, basePath string) *IOFS {
	return &IOFS{fsys: fsys, basePath: basePath}
}

func (e *IOFS) ReadFile(name string) ([]byte, error) {
	actualPath, err := e.FindFile(name)
	if err != nil {
		return nil, err
	}
	return fs.ReadFile(e.fsys, actualPath)
}

func (e *IOFS) FindFile(name string) (string, error) {
	p := e.resolvePath(name)
	// まず直接アクセスを試みる
	if f, err := e.fsys.Open(p); err == nil {
		f.Close()
		return p, nil
	}
	return FindFileCaseInsensitiveFS(e.fsys, path.Dir(p), path.Base(p))
}

func (e *IOFS) BasePath() string {
	return e.basePath
}

func (e *IOFS) resolvePath(name string) string {
	// fs.FS では "/" を使用し、先頭の "/" は付けない
	cleanName := strings.TrimPrefix(strings.ReplaceAll(name, "\\", "/"), "/")
	if cleanName == "" {
		cleanName = "."
	}
	if e.basePath != "" {
		return path.Join(e.basePath, cleanName)
	}
	return path.Clean(cleanName)
}
