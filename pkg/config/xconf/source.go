package xconf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// Format 定义配置文件格式。
type Format string

// 支持的配置格式。
const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// delim koanf 路径分隔符，feature 名中不能包含
const delim = "."

// Source 已加载的配置来源，持有原始 koanf 树与解析后的 Document。
type Source struct {
	mu     sync.RWMutex
	k      *koanf.Koanf
	doc    Document
	path   string
	format Format
}

// Load 从文件加载配置，格式由扩展名（.yaml/.yml/.json）决定。
func Load(path string) (*Source, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	format, err := detectFormat(path)
	if err != nil {
		return nil, err
	}
	s := &Source{path: path, format: format}
	if _, err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadBytes 从字节数据加载配置，空数据得到全部默认值的 Document。
func LoadBytes(data []byte, format Format) (*Source, error) {
	if !isValidFormat(format) {
		return nil, ErrUnsupportedFormat
	}
	k, doc, err := parse(data, format)
	if err != nil {
		return nil, err
	}
	return &Source{k: k, doc: doc, format: format}, nil
}

// Document 返回最近一次成功加载的 Document
func (s *Source) Document() Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc
}

// Client 返回底层 koanf 实例，用于读取 Document 之外的自定义字段。
func (s *Source) Client() *koanf.Koanf {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.k
}

// Reload 重新读取文件。解析失败时保留上一次的 Document。
func (s *Source) Reload() (Document, error) {
	if s.path == "" {
		return Document{}, ErrNotWatchable
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	k, doc, err := parse(data, s.format)
	if err != nil {
		return Document{}, err
	}
	s.mu.Lock()
	s.k, s.doc = k, doc
	s.mu.Unlock()
	return doc, nil
}

// Path 返回配置文件路径，字节来源返回空字符串。
func (s *Source) Path() string { return s.path }

// Format 返回配置格式
func (s *Source) Format() Format { return s.format }

func parse(data []byte, format Format) (*koanf.Koanf, Document, error) {
	k := koanf.New(delim)
	if len(data) > 0 {
		var parser koanf.Parser
		switch format {
		case FormatYAML:
			parser = yaml.Parser()
		case FormatJSON:
			parser = json.Parser()
		default:
			return nil, Document{}, ErrUnsupportedFormat
		}
		if err := k.Load(rawbytes.Provider(data), parser); err != nil {
			return nil, Document{}, fmt.Errorf("%w: %w", ErrParseFailed, err)
		}
	}
	doc, err := decode(k)
	if err != nil {
		return nil, Document{}, err
	}
	return k, doc, nil
}

func detectFormat(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown extension %s", ErrUnsupportedFormat, ext)
	}
}

func isValidFormat(format Format) bool {
	return format == FormatYAML || format == FormatJSON
}
