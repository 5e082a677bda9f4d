package export

import (
	"strings"
	"testing"

	"github.com/thaybinh/hoso7991/internal/model"
)

func fullDraft() model.DraftBundle {
	return model.DraftBundle{
		Matrix: &model.MatrixData{Rows: []model.MatrixRow{
			{Topic: "Mệnh đề và tập hợp", Content: "Mệnh đề", MCQNB: 3, MCQTH: 2, EssayVD: 1, Percent: 40},
		}},
		Spec: &model.SpecData{Items: []model.SpecItem{
			{Topic: "Mệnh đề và tập hợp", Outcome: "Nhận biết mệnh đề", MCQNB: 3},
		}},
		Exam: &model.ExamData{Questions: []model.ExamQuestion{
			{ID: "1", Text: "Mệnh đề nào sau đây đúng?", Options: []string{"1+1=2", "1+1=3", "π là số hữu tỉ", "2 là số lẻ"}},
			{ID: "2", Text: "Chứng minh bằng phản chứng."},
		}},
		Answers: &model.AnswerKeyData{
			MCQ:    []model.MCQAnswer{{Question: 1, Answer: "A"}},
			Essays: []model.EssayGuide{{Question: 2, Points: 1.0, Guide: "Giả sử điều ngược lại."}},
		},
	}
}

func buildDoc(t *testing.T, draft model.DraftBundle) string {
	t.Helper()
	in := model.DefaultInput()
	in.SchoolName = "THPT Nguyễn Du"
	doc, err := BuildDocument(in, draft)
	if err != nil {
		t.Fatalf("BuildDocument: %v", err)
	}
	return string(doc)
}

func TestBuildDocumentStartsWithBOM(t *testing.T) {
	doc := buildDoc(t, fullDraft())
	if !strings.HasPrefix(doc, "\uFEFF") {
		t.Error("document must start with a UTF-8 BOM")
	}
	if !strings.HasPrefix(doc[len("\uFEFF"):], "<html") {
		t.Error("expected html right after the BOM")
	}
}

func TestBuildDocumentMatrixTable(t *testing.T) {
	doc := buildDoc(t, fullDraft())

	for _, want := range []string{
		"MA TRẬN ĐỀ KIỂM TRA",
		"Mệnh đề và tập hợp",
		"40%",
		"Theo thiết kế 7.0 TNKQ - 3.0 TL",
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("document missing %q", want)
		}
	}
}

func TestBuildDocumentExamPaper(t *testing.T) {
	doc := buildDoc(t, fullDraft())

	for _, want := range []string{
		"THPT Nguyễn Du",
		"ĐỀ KIỂM TRA Học kì 1",
		"Môn: Toán học - Lớp 10",
		"Thời gian làm bài: 90 phút",
		"Câu 1.",
		"Câu 2.",
		"A. 1+1=2",
		"B. 1+1=3",
		"D. 2 là số lẻ",
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("document missing %q", want)
		}
	}
}

func TestBuildDocumentAnswerKey(t *testing.T) {
	doc := buildDoc(t, fullDraft())

	for _, want := range []string{
		"ĐÁP ÁN VÀ HƯỚNG DẪN CHẤM",
		"<b>A</b>",
		"Giả sử điều ngược lại.",
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("document missing %q", want)
		}
	}
}

func TestBuildDocumentSkipsAbsentSections(t *testing.T) {
	draft := fullDraft()
	draft.Spec = nil
	draft.Answers = nil
	doc := buildDoc(t, draft)

	if strings.Contains(doc, "BẢN ĐẶC TẢ") {
		t.Error("spec section rendered without a spec artifact")
	}
	if strings.Contains(doc, "ĐÁP ÁN") {
		t.Error("answer section rendered without an answer key")
	}
	if !strings.Contains(doc, "MA TRẬN") {
		t.Error("matrix section should still render")
	}
}

func TestBuildDocumentZeroCellsAreEmpty(t *testing.T) {
	draft := model.DraftBundle{
		Matrix: &model.MatrixData{Rows: []model.MatrixRow{{Topic: "T", Content: "C", MCQNB: 2}}},
	}
	doc := buildDoc(t, draft)

	// Only the populated count prints; zero cells stay blank.
	if !strings.Contains(doc, "<td>2</td>") {
		t.Error("expected the nonzero count to render")
	}
	if strings.Contains(doc, "<td>0</td>") {
		t.Error("zero counts should render as empty cells")
	}
}

func TestFilename(t *testing.T) {
	tests := []struct {
		subject, grade string
		want           string
	}{
		{"Toán học", "10", "Ho_so_7991_Toán_học_10.doc"},
		{"Ngữ  văn ", " 12", "Ho_so_7991_Ngữ_văn_12.doc"},
	}

	for _, tt := range tests {
		in := model.ExamInput{Subject: tt.subject, Grade: tt.grade}
		if got := Filename(in); got != tt.want {
			t.Errorf("Filename(%q, %q) = %q, want %q", tt.subject, tt.grade, got, tt.want)
		}
	}
}
