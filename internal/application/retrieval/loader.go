package retrieval

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"gopkg.in/yaml.v3"
)

// SupportedExtensions 可入库的文件类型
var SupportedExtensions = []string{".yaml", ".yml", ".html", ".htm"}

// IsSupported 判断文件是否可入库
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range SupportedExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

type yamlCorpus struct {
	Category string        `yaml:"category"`
	FAQs     []FAQDocument `yaml:"faqs"`
}

// LoadYAML 读取 FAQ 列表；同时支持顶层数组与 {category, faqs} 两种写法
func LoadYAML(r io.Reader) ([]FAQDocument, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var node yaml.Node
	if err := yaml.Unmarshal(raw, &node); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if len(node.Content) == 0 {
		return nil, nil
	}

	root := node.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		var docs []FAQDocument
		if err := root.Decode(&docs); err != nil {
			return nil, fmt.Errorf("decode faq list: %w", err)
		}
		return docs, nil
	case yaml.MappingNode:
		var corpus yamlCorpus
		if err := root.Decode(&corpus); err != nil {
			return nil, fmt.Errorf("decode faq corpus: %w", err)
		}
		for idx := range corpus.FAQs {
			if corpus.FAQs[idx].Category == "" {
				corpus.FAQs[idx].Category = corpus.Category
			}
		}
		return corpus.FAQs, nil
	default:
		return nil, fmt.Errorf("unexpected yaml root kind %d", root.Kind)
	}
}

// LoadHTML 从 FAQ 页面抽取问答：h2/h3 为问题，其后的段落与列表为答案。
// 页面 <body data-category> 或 <meta name="faq-category"> 提供分类。
func LoadHTML(r io.Reader) ([]FAQDocument, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	category := strings.TrimSpace(doc.Find("body").AttrOr("data-category", ""))
	if category == "" {
		category = strings.TrimSpace(doc.Find(`meta[name="faq-category"]`).AttrOr("content", ""))
	}

	var out []FAQDocument
	doc.Find("h2, h3").Each(func(_ int, h *goquery.Selection) {
		question := collapseSpace(h.Text())
		if question == "" {
			return
		}

		var parts []string
		for sib := h.Next(); sib.Length() > 0; sib = sib.Next() {
			if sib.Is("h1, h2, h3") {
				break
			}
			if sib.Is("p, ul, ol, div, blockquote") {
				if t := collapseSpace(sib.Text()); t != "" {
					parts = append(parts, t)
				}
			}
		}
		if len(parts) == 0 {
			return
		}

		out = append(out, FAQDocument{
			ID:       strings.TrimSpace(h.AttrOr("id", "")),
			Category: strings.TrimSpace(h.AttrOr("data-category", category)),
			Question: question,
			Answer:   strings.Join(parts, "\n"),
		})
	})
	return out, nil
}

// LoadFile 按扩展名选择加载器
func LoadFile(path string) ([]FAQDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(f)
	case ".html", ".htm":
		return LoadHTML(f)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", path)
	}
}

// SourceName 文件相对入库根目录的路径，作为 source 字段
func SourceName(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(filepath.Base(path))
	}
	return filepath.ToSlash(rel)
}

// LoadDir 递归加载目录下所有可入库文件，按 source 分组
func LoadDir(root string) (map[string][]FAQDocument, error) {
	out := make(map[string][]FAQDocument)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !IsSupported(path) {
			return nil
		}
		docs, err := LoadFile(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		out[SourceName(root, path)] = docs
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SortedSources 返回有序的 source 列表
func SortedSources(m map[string][]FAQDocument) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
