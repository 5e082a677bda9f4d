// Package prompts builds the Vietnamese prompts for each pipeline stage
// of the CV 7991 exam document package.
package prompts

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/thaybinh/hoso7991/internal/model"
)

// SystemInstruction frames every generation call.
const SystemInstruction = `Bạn là một chuyên gia khảo thí của Bộ Giáo dục và Đào tạo Việt Nam.
Nhiệm vụ của bạn là thiết kế các thành phần của đề kiểm tra định kỳ theo Chương trình GDPT 2018, Công văn 7991/BGDĐT-GDTrH (ngày 17/12/2024).
Mọi dữ liệu phải chuẩn xác 100% về mặt sư phạm, ngôn ngữ hành chính chuẩn mực.`

// BuildMatrix builds the prompt for the matrix stage from the raw user
// input, including the optional reference material.
func BuildMatrix(in model.ExamInput) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Dựa trên thông tin: Môn %s, Lớp %s, %s.\n", in.Subject, in.Grade, in.Semester)
	fmt.Fprintf(&sb, "Chủ đề: %s. YCCĐ: %s.\n", in.Topics, in.Outcomes)
	fmt.Fprintf(&sb, "TÀI LIỆU THAM KHẢO / ĐỀ CƯƠNG: %q\n\n", referenceOr(in, "Không cung cấp"))

	sb.WriteString("YÊU CẦU CẤU TRÚC ĐỀ (BẮT BUỘC):\n")
	sb.WriteString("1. PHẦN I: TRẮC NGHIỆM KHÁCH QUAN (TỔNG 7.0 ĐIỂM)\n")
	fmt.Fprintf(&sb, "   - Số câu Nhiều lựa chọn: %d câu\n", in.MCQCount)
	fmt.Fprintf(&sb, "   - Số câu Đúng - Sai: %d câu\n", in.TFCount)
	fmt.Fprintf(&sb, "   - Số câu Trả lời ngắn: %d câu\n", in.ShortCount)
	sb.WriteString("2. PHẦN II: TỰ LUẬN (TỔNG 3.0 ĐIỂM)\n")
	fmt.Fprintf(&sb, "   - Số câu Tự luận: %d câu.\n\n", in.EssayCount)

	sb.WriteString("MỨC ĐỘ NHẬN THỨC: Nhận biết 40%, Thông hiểu 30%, Vận dụng 30%.\n")
	sb.WriteString("Hãy phân bổ các câu hỏi vào Ma trận chuẩn Công văn 7991.\n")
	sb.WriteString("Trả về JSON chuẩn theo MatrixData.")
	return sb.String()
}

// BuildSpec builds the specification prompt from the generated matrix.
func BuildSpec(in model.ExamInput, matrix model.MatrixData) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Dựa trên MA TRẬN: %s và TÀI LIỆU THAM KHẢO: %q\n", mustJSON(matrix), referenceOr(in, ""))
	sb.WriteString("Tạo BẢN ĐẶC TẢ theo mẫu CV 7991. Trả về JSON chuẩn SpecData.")
	return sb.String()
}

// BuildExam builds the exam-paper prompt from the specification.
func BuildExam(in model.ExamInput, spec model.SpecData) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Dựa trên BẢN ĐẶC TẢ: %s và TÀI LIỆU THAM KHẢO: %q\n", mustJSON(spec), referenceOr(in, ""))
	sb.WriteString("Hãy ra đề thi đầy đủ câu hỏi. Trả về JSON chuẩn ExamData.")
	return sb.String()
}

// BuildAnswers builds the answer-key prompt from the exam paper.
func BuildAnswers(exam model.ExamData) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Tạo ĐÁP ÁN VÀ HƯỚNG DẪN CHẤM cho đề sau: %s.\n", mustJSON(exam))
	sb.WriteString("Trả về JSON chuẩn AnswerKeyData.")
	return sb.String()
}

func referenceOr(in model.ExamInput, fallback string) string {
	if strings.TrimSpace(in.ReferenceMaterial) == "" {
		return fallback
	}
	return in.ReferenceMaterial
}

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		// The artifact types contain nothing unmarshalable.
		panic(err)
	}
	return string(data)
}
