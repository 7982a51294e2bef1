package cmd

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"inventory.GO/config"
	authRepo "inventory.GO/model/repository/auth"
)

var (
	tokenLabel  string
	tokenRole   string
	tokenRevoke string
)

var tokenCreateCmd = &cobra.Command{
	Use:   "tokens:create",
	Short: "Create an API bearer token (AUTH_TYPE=token)",
	Run: func(cmd *cobra.Command, args []string) {
		db, err := config.NewDB()
		if err != nil {
			fmt.Printf("Database connection failed: %v\n", err)
			return
		}

		token := strings.ReplaceAll(uuid.NewString(), "-", "")
		created, err := authRepo.NewAuthRepository(db).CreateToken(token, tokenLabel, tokenRole)
		if err != nil {
			fmt.Printf("Token creation failed: %v\n", err)
			return
		}
		fmt.Printf("Token created (role=%s, label=%q):\n%s\n", created.Role, created.Label, created.Token)
	},
}

var tokenRevokeCmd = &cobra.Command{
	Use:   "tokens:revoke",
	Short: "Revoke an API bearer token",
	Run: func(cmd *cobra.Command, args []string) {
		db, err := config.NewDB()
		if err != nil {
			fmt.Printf("Database connection failed: %v\n", err)
			return
		}

		affected, err := authRepo.NewAuthRepository(db).RevokeToken(tokenRevoke)
		if err != nil {
			fmt.Printf("Revoke failed: %v\n", err)
			return
		}
		if affected == 0 {
			fmt.Println("No such token")
			return
		}
		fmt.Println("Token revoked")
	},
}

func init() {
	tokenCreateCmd.Flags().StringVar(&tokenLabel, "label", "", "Human-readable token label")
	tokenCreateCmd.Flags().StringVar(&tokenRole, "role", "read", "Token role: read, write or admin")
	tokenRevokeCmd.Flags().StringVar(&tokenRevoke, "token", "", "Token string to revoke (required)")
	tokenRevokeCmd.MarkFlagRequired("token")
	rootCmd.AddCommand(tokenCreateCmd, tokenRevokeCmd)
}
