package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"promptfabric/internal/app"
	"promptfabric/internal/config"
	"promptfabric/internal/service"
)

func main() {
	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := zap.NewExample()
	defer logger.Sync()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()

	sessionID := uuid.NewString()
	if len(os.Args) > 1 {
		sessionID = os.Args[1]
	}

	fmt.Println("===== PromptFabric =====")
	fmt.Printf("Sesion: %s\n", sessionID)
	fmt.Println("Comandos: /new, /history, /exit")

	for {
		fmt.Print("Tu > ")
		text, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			log.Fatalf("leer input: %v", err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		switch strings.ToLower(text) {
		case "/exit", "salir":
			fmt.Println("Saliendo...")
			return
		case "/new":
			sessionID = uuid.NewString()
			fmt.Printf("Nueva sesion: %s\n", sessionID)
			continue
		case "/history":
			printHistory(ctx, a.Memory, sessionID)
			continue
		}

		result, err := a.Orchestrator.Process(ctx, service.ProcessRequest{Message: text, SessionID: sessionID})
		if err != nil {
			fmt.Printf("error procesando mensaje: %v\n", err)
			continue
		}
		sessionID = result.SessionID
		fmt.Printf("%s > %s\n", result.Model, result.Response)
		if result.Validated && !result.Valid {
			fmt.Printf("(issues: %s)\n", strings.Join(result.Issues, ", "))
		}
	}
}

func printHistory(ctx context.Context, memory *service.MemoryStore, sessionID string) {
	messages, err := memory.GetMessages(ctx, sessionID, 0)
	if err != nil {
		fmt.Printf("error leyendo historial: %v\n", err)
		return
	}
	if len(messages) == 0 {
		fmt.Println("(sin mensajes)")
		return
	}
	for _, m := range messages {
		fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Format("15:04:05"), m.Role, m.Content)
	}
}
