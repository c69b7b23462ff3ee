package cmd

import (
	"fmt"
	"log/slog"

	"github.com/shouni/go-pose-kit/internal/pipeline"

	"github.com/spf13/cobra"
)

// identityCmd は、ベースキャラクターの登録・破棄を行う親コマンドなのだ。
var identityCmd = &cobra.Command{
	Use:   "identity",
	Short: "ベースキャラクターを管理するのだ。",
	Long: `ポーズ生成の基準となるベースキャラクター画像を登録・破棄するのだ。
登録されたキャラクターはすべてのポーズ生成で同一性の基準になるのだよ。`,
}

// init は、identity のサブコマンド（set / clear）を登録するのだ。
func init() {
	identityCmd.AddCommand(identitySetCmd)
	identityCmd.AddCommand(identityClearCmd)
}

var identitySetCmd = &cobra.Command{
	Use:   "set",
	Short: "ベースキャラクター画像を登録（置換）するのだ。",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if opts.BaseImage == "" {
			return fmt.Errorf("ベースキャラクター画像（--base-image）を指定してほしいのだ")
		}

		cfg := loadConfig()

		if err := pipeline.ExecuteIdentitySet(ctx, cfg); err != nil {
			return fmt.Errorf("ベースキャラクターの登録に失敗したのだ: %w", err)
		}
		return nil
	},
}

var identityClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "登録済みのベースキャラクターを破棄するのだ。",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg := loadConfig()

		if err := pipeline.ExecuteIdentityClear(ctx, cfg); err != nil {
			return fmt.Errorf("ベースキャラクターの破棄に失敗したのだ: %w", err)
		}

		slog.Info("次の generate からは新しいキャラクターを登録してほしいのだ")
		return nil
	},
}
