package normalizer

import (
	"sync"
	"time"
)

// DefaultDebounceWindow は、入力が静止したとみなすまでの待ち時間です。
// キーストロークやアップロードの刻みごとに describe 呼び出しが
// 発生するのを防ぎます。
const DefaultDebounceWindow = 500 * time.Millisecond

// Debouncer は、短時間に連続するトリガーを1回にまとめるタイマーゲートです。
// 最後の Trigger から window だけ静止すると、最新の関数だけが実行されます。
type Debouncer struct {
	mu      sync.Mutex
	window  time.Duration
	timer   *time.Timer
	pending func()
}

// NewDebouncer は、指定した静止ウィンドウの Debouncer を作成します。
// window がゼロ以下の場合はデフォルト値を使います。
func NewDebouncer(window time.Duration) *Debouncer {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	return &Debouncer{window: window}
}

// Trigger は、実行候補の関数を登録してタイマーをリセットします。
// ウィンドウ内に再度呼ばれた場合、前の候補は破棄されます。
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending = fn
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.fire)
}

// fire は、タイマー満了時に保留中の関数を取り出して実行します。
func (d *Debouncer) fire() {
	d.mu.Lock()
	fn := d.pending
	d.pending = nil
	d.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Flush は、保留中の関数があれば待たずに同期実行します。
// CLI のような協調的な呼び出し元が、静止待ちを省略するために使います。
func (d *Debouncer) Flush() {
	d.mu.Lock()
	fn := d.pending
	d.pending = nil
	if d.timer != nil {
		d.timer.Stop()
	}
	d.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Stop は、保留中の実行を取り消します。
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending = nil
	if d.timer != nil {
		d.timer.Stop()
	}
}
