package prompts

import (
	"fmt"
	"strings"
)

// プロンプト構成用の定数です。文言自体は契約ではなく、リクエストの形だけが
// 外部仕様として固定されています。
const (
	// DescribeSystemInstruction は、ポーズ記述の正規化に使う指示です。
	// 画風や人物の同一性には触れず、体の位置だけを述べさせます。
	DescribeSystemInstruction = "You are a motion analyst. Describe ONLY the body position in one neutral sentence. " +
		"Do not mention art style, clothing, identity, or background."

	// DescribeTextPreamble は、テキスト入力を中立的な1文に整えるための前置きです。
	DescribeTextPreamble = "Rewrite the following pose request as one neutral sentence describing only body position: "

	// DescribeImagePreamble は、参照画像からポーズを抽出するための前置きです。
	DescribeImagePreamble = "Describe the body position of the single subject in this image in one neutral sentence."

	// renderSystemInstruction は、ベースキャラクターの同一性維持を最優先に指示します。
	renderSystemInstruction = "You are a professional character illustrator. " +
		"The FIRST image is the master character reference. Preserve its visual identity EXACTLY: " +
		"face, hair, outfit, colors and proportions must not change. Only the pose changes."

	// renderPoseImageNote は、画像モードで2枚目の画像の役割を固定する指示です。
	renderPoseImageNote = "The SECOND image shows the target pose. Copy the body position only, never the subject."
)

// RenderPromptBuilder は、ベースキャラクターの固定とポーズ記述から
// 生成リクエスト用のプロンプトを構築します。
type RenderPromptBuilder struct {
	styleSuffix string
}

// NewRenderPromptBuilder は、共通スタイルサフィックス付きのビルダーを作成します。
func NewRenderPromptBuilder(styleSuffix string) *RenderPromptBuilder {
	return &RenderPromptBuilder{styleSuffix: styleSuffix}
}

// BuildRenderPrompt は、UserPrompt（ポーズ内容）と SystemPrompt（同一性維持・画風）を
// 分けて生成します。withPoseImage が真の場合、2枚目の画像の扱いを指示に含めます。
func (b *RenderPromptBuilder) BuildRenderPrompt(description string, withPoseImage bool) (string, string) {
	var ss strings.Builder
	ss.WriteString(renderSystemInstruction)
	if withPoseImage {
		ss.WriteString("\n\n")
		ss.WriteString(renderPoseImageNote)
	}
	if b.styleSuffix != "" {
		ss.WriteString("\n\n")
		ss.WriteString(fmt.Sprintf("### GLOBAL VISUAL STYLE ###\n%s", b.styleSuffix))
	}

	userPrompt := fmt.Sprintf("New pose: %s", strings.TrimSpace(description))
	return userPrompt, ss.String()
}
