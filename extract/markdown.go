package extract

import (
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
)

// MarkdownConverter wraps a reusable, goroutine-safe html-to-markdown
// converter. Construct once and share across scrape workers.
type MarkdownConverter struct {
	conv *converter.Converter
}

// NewMarkdownConverter configures the converter:
//
//   - base plugin: strips script, style, iframe, noscript, head and comments.
//   - commonmark plugin: standard Markdown rendering.
//   - table plugin with minimal cell padding to keep output compact.
func NewMarkdownConverter() *MarkdownConverter {
	return &MarkdownConverter{
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(
					table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
				),
			),
		),
	}
}

// Convert renders HTML as Markdown. baseURL resolves relative <a> and <img>
// URLs so the output is self-contained.
func (m *MarkdownConverter) Convert(html, baseURL string) (string, error) {
	return m.conv.ConvertString(html, converter.WithDomain(baseURL))
}
