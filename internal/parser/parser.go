// Package parser reads FAQ source files into FAQ entries.
package parser

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"

	"support-rag/internal/models"
)

// Supported lists the file extensions ParseFAQFile understands.
var Supported = []string{".json", ".yaml", ".yml", ".md", ".markdown", ".txt", ".docx", ".pptx", ".pdf", ".xlsx", ".xlsm", ".xltx", ".xltm"}

var (
	questionRe = regexp.MustCompile(`(?i)^\s*(?:Q|Question)\s*:\s*(.*)$`)
	answerRe   = regexp.MustCompile(`(?i)^\s*(?:A|Answer)\s*:\s*(.*)$`)
	sourceRe   = regexp.MustCompile(`(?i)^\s*(?:Source|Category)\s*:\s*(.*)$`)
)

// ParseFAQFile dispatches on the file extension. Entries keep file order;
// validation of empty questions or answers is left to the importer.
func ParseFAQFile(filePath string) ([]models.FAQEntry, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".json":
		return parseJSON(filePath)
	case ".yaml", ".yml":
		return parseYAML(filePath)
	case ".md", ".markdown":
		return parseMarkdown(filePath)
	case ".txt":
		return parseText(filePath)
	case ".docx":
		return parseDOCX(filePath)
	case ".pptx":
		return parsePPTX(filePath)
	case ".pdf":
		return parsePDF(filePath)
	case ".xlsx":
		return parseXLSX(filePath)
	case ".xlsm", ".xltx", ".xltm":
		return parseExcelize(filePath)
	default:
		return nil, fmt.Errorf("unsupported file format %q, expected one of %s", ext, strings.Join(Supported, " "))
	}
}

// faqDocument accepts both a bare list and {"faqs": [...]}.
type faqDocument struct {
	FAQs []models.FAQEntry `json:"faqs" yaml:"faqs"`
}

func parseJSON(filePath string) ([]models.FAQEntry, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if bytes.HasPrefix(data, []byte("[")) {
		var entries []models.FAQEntry
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("parse %s: %w", filePath, err)
		}
		return entries, nil
	}
	var doc faqDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filePath, err)
	}
	return doc.FAQs, nil
}

func parseYAML(filePath string) ([]models.FAQEntry, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	var entries []models.FAQEntry
	if err := yaml.Unmarshal(data, &entries); err == nil {
		return entries, nil
	}
	var doc faqDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filePath, err)
	}
	return doc.FAQs, nil
}

// parseMarkdown treats a heading followed by body text as a question and
// the body as its answer. A heading with no body names the source of the
// questions under it.
func parseMarkdown(filePath string) ([]models.FAQEntry, error) {
	source, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	doc := md.Parser().Parse(text.NewReader(source))

	var (
		entries  []models.FAQEntry
		section  string
		question string
		answer   []string
	)
	flush := func() {
		if question == "" {
			return
		}
		if len(answer) == 0 {
			section = strings.ToLower(question)
		} else {
			entries = append(entries, models.FAQEntry{
				Question: question,
				Answer:   strings.Join(answer, "\n"),
				Source:   section,
			})
		}
		question, answer = "", nil
	}

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok {
			flush()
			question = strings.TrimSpace(blockText(h, source))
			continue
		}
		if question == "" {
			continue
		}
		if body := strings.TrimSpace(blockText(n, source)); body != "" {
			answer = append(answer, body)
		}
	}
	flush()
	return entries, nil
}

// blockText collects the raw source lines of every block under n.
func blockText(n ast.Node, source []byte) string {
	var buf strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || node.Type() != ast.TypeBlock {
			return ast.WalkContinue, nil
		}
		if _, isList := node.(*ast.ListItem); isList {
			buf.WriteString("• ")
		}
		lines := node.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(source))
		}
		if lines.Len() > 0 && !strings.HasSuffix(buf.String(), "\n") {
			buf.WriteString("\n")
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}

func parseText(filePath string) ([]models.FAQEntry, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return parseQA(string(data)), nil
}

// parseQA reads "Q: ... / A: ..." blocks. Lines after an A: line continue
// the answer until the next Q:.
func parseQA(content string) []models.FAQEntry {
	var (
		entries []models.FAQEntry
		cur     *models.FAQEntry
		inAns   bool
		source  string
	)
	flush := func() {
		if cur != nil {
			cur.Question = strings.TrimSpace(cur.Question)
			cur.Answer = strings.TrimSpace(cur.Answer)
			entries = append(entries, *cur)
		}
		cur, inAns = nil, false
	}

	for _, line := range strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n") {
		switch {
		case questionRe.MatchString(line):
			flush()
			cur = &models.FAQEntry{Question: questionRe.FindStringSubmatch(line)[1], Source: source}
		case cur != nil && answerRe.MatchString(line):
			inAns = true
			cur.Answer = answerRe.FindStringSubmatch(line)[1]
		case sourceRe.MatchString(line):
			source = strings.TrimSpace(sourceRe.FindStringSubmatch(line)[1])
			if cur != nil {
				cur.Source = source
			}
		case cur != nil && strings.TrimSpace(line) != "":
			if inAns {
				cur.Answer += "\n" + strings.TrimSpace(line)
			} else {
				cur.Question += " " + strings.TrimSpace(line)
			}
		}
	}
	flush()
	return entries
}

func parseDOCX(filePath string) ([]models.FAQEntry, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	content := r.Editable().GetContent()
	return parseQA(extractTextFromXML(content, "w:p", "w:t")), nil
}

func parsePPTX(filePath string) ([]models.FAQEntry, error) {
	f, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var slides []*zip.File
	for _, file := range f.File {
		if strings.HasPrefix(file.Name, "ppt/slides/slide") && strings.HasSuffix(file.Name, ".xml") {
			slides = append(slides, file)
		}
	}
	sort.Slice(slides, func(i, j int) bool { return slideNumber(slides[i].Name) < slideNumber(slides[j].Name) })

	var all strings.Builder
	for _, file := range slides {
		rc, err := file.Open()
		if err != nil {
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}
		all.WriteString(extractTextFromXML(string(data), "a:p", "a:t"))
		all.WriteString("\n")
	}
	return parseQA(all.String()), nil
}

func slideNumber(name string) int {
	var n int
	fmt.Sscanf(strings.TrimPrefix(name, "ppt/slides/slide"), "%d", &n)
	return n
}

func parsePDF(filePath string) ([]models.FAQEntry, error) {
	f, r, err := pdf.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var all strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return nil, fmt.Errorf("read page %d: %w", i, err)
		}
		for _, row := range rows {
			for _, word := range row.Content {
				all.WriteString(word.S)
			}
			all.WriteString("\n")
		}
	}
	return parseQA(all.String()), nil
}

func parseXLSX(filePath string) ([]models.FAQEntry, error) {
	f, err := xlsx.OpenFile(filePath)
	if err != nil {
		return nil, err
	}

	var entries []models.FAQEntry
	for _, sheet := range f.Sheets {
		rows := make([][]string, 0, len(sheet.Rows))
		for _, row := range sheet.Rows {
			cells := make([]string, 0, len(row.Cells))
			for _, cell := range row.Cells {
				cells = append(cells, cell.String())
			}
			rows = append(rows, cells)
		}
		entries = append(entries, rowsToEntries(rows, sheet.Name)...)
	}
	return entries, nil
}

func parseExcelize(filePath string) ([]models.FAQEntry, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []models.FAQEntry
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			continue
		}
		entries = append(entries, rowsToEntries(rows, sheetName)...)
	}
	return entries, nil
}

// rowsToEntries maps spreadsheet rows to FAQs. A header row naming
// question/answer/source columns is honoured; otherwise columns are taken
// as question, answer, source. Without a source column the sheet name is used.
func rowsToEntries(rows [][]string, sheetName string) []models.FAQEntry {
	qCol, aCol, sCol := 0, 1, 2
	start := 0
	if len(rows) > 0 {
		header := map[string]int{}
		for i, c := range rows[0] {
			header[strings.ToLower(strings.TrimSpace(c))] = i
		}
		q, hasQ := header["question"]
		a, hasA := header["answer"]
		if hasQ && hasA {
			qCol, aCol, start = q, a, 1
			sCol = -1
			if s, ok := header["source"]; ok {
				sCol = s
			}
		}
	}

	cell := func(row []string, i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var entries []models.FAQEntry
	for _, row := range rows[start:] {
		q, a := cell(row, qCol), cell(row, aCol)
		if q == "" && a == "" {
			continue
		}
		src := cell(row, sCol)
		if src == "" {
			src = strings.ToLower(sheetName)
		}
		entries = append(entries, models.FAQEntry{Question: q, Answer: a, Source: src})
	}
	return entries
}

var xmlEntities = strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&apos;", "'")

// extractTextFromXML pulls the text runs out of OOXML, one line per paragraph.
func extractTextFromXML(xmlContent, paraTag, textTag string) string {
	var out strings.Builder
	for _, para := range strings.Split(xmlContent, "</"+paraTag+">") {
		var line strings.Builder
		parts := strings.Split(para, "<"+textTag)
		for i, part := range parts {
			if i == 0 {
				continue
			}
			// skip attributes and reject longer tag names such as <w:tab>
			if len(part) == 0 || (part[0] != '>' && part[0] != ' ') {
				continue
			}
			open := strings.Index(part, ">")
			end := strings.Index(part, "</"+textTag+">")
			if open < 0 || end < open {
				continue
			}
			line.WriteString(part[open+1 : end])
		}
		if s := strings.TrimSpace(line.String()); s != "" {
			out.WriteString(xmlEntities.Replace(s))
			out.WriteString("\n")
		}
	}
	return out.String()
}
