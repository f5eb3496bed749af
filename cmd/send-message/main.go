package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/DevRickLin/feishu-meetbot/internal/infra/feishu"
	"github.com/DevRickLin/feishu-meetbot/internal/logging"
)

// send-message posts a text to a chat with the bot's credentials. Useful to
// check that the app can reach a chat before running a meeting there.
func main() {
	_ = godotenv.Load()
	log := logging.InitStructureLogConfig(os.Stderr, false)

	appID := os.Getenv("FEISHU_APP_ID")
	appSecret := os.Getenv("FEISHU_APP_SECRET")
	if appID == "" || appSecret == "" {
		fmt.Fprintln(os.Stderr, "Error: FEISHU_APP_ID and FEISHU_APP_SECRET must be set")
		os.Exit(1)
	}

	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "Usage: send-message <chat_id> <message>")
		os.Exit(1)
	}
	chatID, message := os.Args[1], os.Args[2]

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client := feishu.NewClient(appID, appSecret)
	msgID, err := client.SendText(ctx, chatID, message)
	if err != nil {
		log.Error("failed to send message", "chat_id", chatID, logging.ErrKey, err)
		os.Exit(1)
	}
	fmt.Println(msgID)
}
