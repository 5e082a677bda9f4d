// Package export serializes a draft into a legacy word-processor
// compatible HTML document (.doc).
package export

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/thaybinh/hoso7991/internal/model"
)

// ContentType is the MIME type of the exported document.
const ContentType = "application/msword"

const docTemplate = `<html xmlns:o='urn:schemas-microsoft-com:office:office' xmlns:w='urn:schemas-microsoft-com:office:word' xmlns='http://www.w3.org/TR/REC-html40'><head><meta charset='utf-8'><style>table { border-collapse: collapse; width: 100%; } th, td { border: 1px solid black; padding: 3px; text-align: center; font-family: 'Times New Roman'; font-size: 9pt; } .text-left { text-align: left; } body { font-family: 'Times New Roman'; } .page-break { page-break-after: always; }</style></head><body>
{{- with .Draft.Matrix}}
<h3>MA TRẬN ĐỀ KIỂM TRA</h3>
<table>
<tr><th rowspan="3">TT</th><th rowspan="3">Chủ đề</th><th rowspan="3">Nội dung</th><th colspan="12">Mức độ đánh giá</th><th colspan="3">Tổng</th><th rowspan="3">Tỉ lệ</th></tr>
<tr><th colspan="3">Nhiều LC</th><th colspan="3">Đúng-Sai</th><th colspan="3">Ngắn</th><th colspan="3">Tự luận</th><th rowspan="2">B</th><th rowspan="2">H</th><th rowspan="2">V</th></tr>
<tr><th>B</th><th>H</th><th>V</th><th>B</th><th>H</th><th>V</th><th>B</th><th>H</th><th>V</th><th>B</th><th>H</th><th>V</th></tr>
{{- range $i, $r := .Rows}}
<tr><td>{{add1 $i}}</td><td class="text-left">{{$r.Topic}}</td><td class="text-left">{{$r.Content}}</td><td>{{cell $r.MCQNB}}</td><td>{{cell $r.MCQTH}}</td><td>{{cell $r.MCQVD}}</td><td>{{cell $r.TFNB}}</td><td>{{cell $r.TFTH}}</td><td>{{cell $r.TFVD}}</td><td>{{cell $r.ShortNB}}</td><td>{{cell $r.ShortTH}}</td><td>{{cell $r.ShortVD}}</td><td>{{cell $r.EssayNB}}</td><td>{{cell $r.EssayTH}}</td><td>{{cell $r.EssayVD}}</td><td><b>{{cell (rowNB $r)}}</b></td><td><b>{{cell (rowTH $r)}}</b></td><td><b>{{cell (rowVD $r)}}</b></td><td>{{$r.Percent}}%</td></tr>
{{- end}}
<tr><td colspan="3"><b>Tổng cộng</b></td><td colspan="12"><i>Theo thiết kế 7.0 TNKQ - 3.0 TL</i></td><td><b>4.0</b></td><td><b>3.0</b></td><td><b>3.0</b></td><td><b>100%</b></td></tr>
</table>
<div class="page-break"></div>
{{- end}}
{{- with .Draft.Spec}}
<h3>BẢN ĐẶC TẢ ĐỀ KIỂM TRA</h3>
<table>
<tr><th rowspan="3">TT</th><th rowspan="3">Chủ đề</th><th rowspan="3">Yêu cầu cần đạt</th><th colspan="12">Số câu hỏi theo mức độ</th></tr>
<tr><th colspan="3">Nhiều LC</th><th colspan="3">Đúng-Sai</th><th colspan="3">Ngắn</th><th colspan="3">Tự luận</th></tr>
<tr><th>B</th><th>H</th><th>V</th><th>B</th><th>H</th><th>V</th><th>B</th><th>H</th><th>V</th><th>B</th><th>H</th><th>V</th></tr>
{{- range $i, $it := .Items}}
<tr><td>{{add1 $i}}</td><td class="text-left">{{$it.Topic}}</td><td class="text-left">{{$it.Outcome}}</td><td>{{cell $it.MCQNB}}</td><td>{{cell $it.MCQTH}}</td><td>{{cell $it.MCQVD}}</td><td>{{cell $it.TFNB}}</td><td>{{cell $it.TFTH}}</td><td>{{cell $it.TFVD}}</td><td>{{cell $it.ShortNB}}</td><td>{{cell $it.ShortTH}}</td><td>{{cell $it.ShortVD}}</td><td>{{cell $it.EssayNB}}</td><td>{{cell $it.EssayTH}}</td><td>{{cell $it.EssayVD}}</td></tr>
{{- end}}
</table>
<div class="page-break"></div>
{{- end}}
{{- with .Draft.Exam}}
<table style="border: none;"><tr><td style="border: none; width: 50%;"><b>{{$.Input.SchoolName}}</b></td><td style="border: none;"><b>ĐỀ KIỂM TRA {{$.Input.Semester}}</b><br/>Môn: {{$.Input.Subject}} - Lớp {{$.Input.Grade}}<br/><i>Thời gian làm bài: {{$.Input.Time}} phút</i></td></tr></table>
{{- range $i, $q := .Questions}}
<p class="text-left"><b>Câu {{add1 $i}}.</b> {{$q.Text}}</p>
{{- range $j, $o := $q.Options}}
<p class="text-left" style="margin-left: 24pt;">{{letter $j}}. {{$o}}</p>
{{- end}}
{{- end}}
<div class="page-break"></div>
{{- end}}
{{- with .Draft.Answers}}
<h3>ĐÁP ÁN VÀ HƯỚNG DẪN CHẤM</h3>
{{- if .MCQ}}
<table>
<tr><th>Câu</th><th>Đáp án</th></tr>
{{- range .MCQ}}
<tr><td>{{.Question}}</td><td><b>{{.Answer}}</b></td></tr>
{{- end}}
</table>
{{- end}}
{{- if .Essays}}
<table>
<tr><th>Câu</th><th>Điểm</th><th>Hướng dẫn chấm</th></tr>
{{- range .Essays}}
<tr><td>{{.Question}}</td><td>{{.Points}}</td><td class="text-left">{{.Guide}}</td></tr>
{{- end}}
</table>
{{- end}}
{{- end}}
</body></html>`

var tmpl = template.Must(template.New("doc").Funcs(template.FuncMap{
	"add1": func(i int) int { return i + 1 },
	// Empty cell instead of a zero, matching the printed matrix.
	"cell": func(n int) string {
		if n == 0 {
			return ""
		}
		return fmt.Sprintf("%d", n)
	},
	"letter": func(i int) string { return string(rune('A' + i)) },
	"rowNB": func(r model.MatrixRow) int {
		nb, _, _ := r.LevelTotals()
		return nb
	},
	"rowTH": func(r model.MatrixRow) int {
		_, th, _ := r.LevelTotals()
		return th
	},
	"rowVD": func(r model.MatrixRow) int {
		_, _, vd := r.LevelTotals()
		return vd
	},
}).Parse(docTemplate))

type docData struct {
	Input model.ExamInput
	Draft model.DraftBundle
}

// BuildDocument renders the draft as a Word-compatible HTML payload,
// prefixed with a UTF-8 BOM so legacy word processors pick up the
// encoding. Absent artifacts are skipped.
func BuildDocument(input model.ExamInput, draft model.DraftBundle) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("\ufeff")
	if err := tmpl.Execute(&buf, docData{Input: input, Draft: draft}); err != nil {
		return nil, fmt.Errorf("render document: %w", err)
	}
	return buf.Bytes(), nil
}

// Filename returns the download name for the document, derived from
// subject and grade with whitespace collapsed to underscores.
func Filename(input model.ExamInput) string {
	name := "Ho_so_7991_" + input.Subject + "_" + input.Grade
	return strings.Join(strings.Fields(name), "_") + ".doc"
}
