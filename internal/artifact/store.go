// Package artifact 管理日期/策略两级目录下的产物文件。
// 路径布局与既有产物保持逐字节兼容，不可更改。
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Kind 是产物类别，决定子目录与文件名后缀。
type Kind string

const (
	KindResearch  Kind = "research"
	KindBacktest  Kind = "backtest"
	KindPackage   Kind = "package"
	KindFinal     Kind = "final"
	KindOptimized Kind = "optimized"
)

// DateFolderLayout 为日期目录的格式（US 零填充月_日_年）。
const DateFolderLayout = "01_02_2006"

type kindSpec struct {
	dir    string
	suffix string
	ext    string
}

var kindSpecs = map[Kind]kindSpec{
	KindResearch:  {dir: "research", suffix: "_strategy", ext: ".txt"},
	KindBacktest:  {dir: "backtests", suffix: "_BT", ext: ".py"},
	KindPackage:   {dir: "backtests_package", suffix: "_PKG", ext: ".py"},
	KindFinal:     {dir: "backtests_final", suffix: "_BTFinal", ext: ".py"},
	KindOptimized: {dir: "backtests_optimized", suffix: "_OPT", ext: ".py"},
}

// Store 在 <root>/<MM_DD_YYYY>/ 下按约定写入产物；版本 0 的规范路径只写一次。
type Store struct {
	root       string
	dateFolder string
}

// NewStore 构建产物仓库。dateFolder 为空时取当前本地日期；
// 一次运行期间日期目录固定，不随挂钟变化。
func NewStore(root, dateFolder string) (*Store, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("artifact root 不能为空")
	}
	if dateFolder == "" {
		dateFolder = time.Now().Format(DateFolderLayout)
	}
	return &Store{root: root, dateFolder: dateFolder}, nil
}

func (s *Store) Root() string       { return s.root }
func (s *Store) DateFolder() string { return s.dateFolder }

// DateDir 返回当前运行的日期目录。
func (s *Store) DateDir() string {
	return filepath.Join(s.root, s.dateFolder)
}

// Path 纯路径构造，不触碰文件系统。版本 >0 仅对 KindOptimized 有意义。
func (s *Store) Path(kind Kind, strategy string, version int) string {
	spec := kindSpecs[kind]
	name := strategy + spec.suffix
	if kind == KindOptimized && version > 0 {
		name = fmt.Sprintf("%s%s_v%d", strategy, spec.suffix, version)
	}
	return filepath.Join(s.DateDir(), spec.dir, name+spec.ext)
}

// TargetHitPath 为达标副本的落点。
func (s *Store) TargetHitPath(strategy string) string {
	return filepath.Join(s.DateDir(), kindSpecs[KindOptimized].dir, strategy+"_TARGET_HIT.py")
}

// ExecutionResultPath 为一次执行记录 JSON 的落点。
func (s *Store) ExecutionResultPath(strategy string, ts time.Time) string {
	return filepath.Join(s.DateDir(), "execution_results",
		fmt.Sprintf("%s_%s.json", strategy, ts.Format("20060102_150405")))
}

// ChartPath 为修复循环收益曲线图的落点。
func (s *Store) ChartPath(strategy string) string {
	return filepath.Join(s.DateDir(), "charts", strategy+"_loop.html")
}

// Exists 判断产物是否已存在。
func (s *Store) Exists(kind Kind, strategy string, version int) bool {
	_, err := os.Stat(s.Path(kind, strategy, version))
	return err == nil
}

// Read 读取既有产物字节。
func (s *Store) Read(kind Kind, strategy string, version int) ([]byte, error) {
	return os.ReadFile(s.Path(kind, strategy, version))
}

// Write 原子落盘：同目录临时文件 + rename。
// 版本 0 的规范路径若已存在则保持原样（write-once），直接返回。
func (s *Store) Write(kind Kind, strategy string, version int, data []byte) (string, error) {
	path := s.Path(kind, strategy, version)
	if version == 0 && kind != KindOptimized {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	if err := WriteFileAtomic(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// WriteExecutionResult 落盘一次执行记录。
func (s *Store) WriteExecutionResult(strategy string, ts time.Time, data []byte) (string, error) {
	path := s.ExecutionResultPath(strategy, ts)
	if err := WriteFileAtomic(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// CopyTargetHit 把达标版本复制到 TARGET_HIT 路径。
func (s *Store) CopyTargetHit(strategy string, data []byte) (string, error) {
	path := s.TargetHitPath(strategy)
	if err := WriteFileAtomic(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// EnsureSideDirs 预建日期目录下的附属目录（原系统遗留的空目录）。
func (s *Store) EnsureSideDirs() error {
	for _, dir := range []string{"charts", "execution_results"} {
		if err := os.MkdirAll(filepath.Join(s.DateDir(), dir), 0o755); err != nil {
			return err
		}
	}
	return nil
}

// WriteFileAtomic 写临时文件后 rename，避免留下半写的规范路径。
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
