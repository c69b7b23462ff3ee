package domain

// ImagePayload は、転送用の画像バイナリと MIME タイプの組を保持します。
// Data は JSON 化の際に base64 文字列として表現されます。
type ImagePayload struct {
	Data     []byte `json:"data"`
	MimeType string `json:"mime_type"`
}

// IsEmpty は、画像データが空かどうかを返します。
func (p ImagePayload) IsEmpty() bool {
	return len(p.Data) == 0
}

// BaseIdentity は、すべての生成の基準となる唯一のキャラクター参照画像です。
// セッションを通じてバイト単位で同一であることが一貫性保持の前提になります。
type BaseIdentity struct {
	Image ImagePayload `json:"image"`
}

// IsZero は、ベースキャラクターが未登録の状態かどうかを返します。
func (b BaseIdentity) IsZero() bool {
	return b.Image.IsEmpty()
}

// Clone は、呼び出し元による変更から内部状態を守るための防御的コピーを返します。
func (b BaseIdentity) Clone() BaseIdentity {
	data := make([]byte, len(b.Image.Data))
	copy(data, b.Image.Data)
	return BaseIdentity{Image: ImagePayload{Data: data, MimeType: b.Image.MimeType}}
}

// GenerationResult は、1回の生成試行で得られた成果画像です。
// 新しい試行のたびに丸ごと置き換えられます。
type GenerationResult struct {
	Image ImagePayload `json:"image"`
}
