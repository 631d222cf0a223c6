package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"
)

// exportRequest — тело запроса на экспорт диалога.
type exportRequest struct {
	Type string `json:"type"`
	ID   int64  `json:"id"`
}

// taskStatusResponse — ответ сервера о статусе задачи.
type taskStatusResponse struct {
	TaskID       string `json:"task_id"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
}

func main() {
	var (
		serverAddr string
		dlgType    string
		dlgID      int64
		outFile    string
	)
	flag.StringVar(&serverAddr, "server", "http://localhost:8080", "Server address")
	flag.StringVar(&dlgType, "type", "user", "Dialog type (user, chat, group)")
	flag.Int64Var(&dlgID, "id", 0, "Dialog ID")
	flag.StringVar(&outFile, "out", "", "File for the exported JSON (defaults to <id>.json)")
	flag.Parse()

	if dlgID == 0 {
		log.Fatal("Dialog ID is required. Usage: client -type user -id 12345")
	}
	if outFile == "" {
		outFile = fmt.Sprintf("%d.json", dlgID)
	}

	// Постановка задачи экспорта
	body, err := json.Marshal(exportRequest{Type: dlgType, ID: dlgID})
	if err != nil {
		log.Fatalf("Не удалось сериализовать запрос: %v", err)
	}

	resp, err := http.Post(serverAddr+"/api/v1/export", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatalf("Не удалось отправить запрос: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		log.Fatalf("Сервер вернул статус: %d", resp.StatusCode)
	}

	var taskResp map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&taskResp); err != nil {
		log.Fatalf("Не удалось декодировать ответ: %v", err)
	}
	taskID := taskResp["task_id"]
	if taskID == "" {
		log.Fatal("Идентификатор задачи не найден в ответе")
	}

	fmt.Printf("Задача создана с идентификатором: %s\n", taskID)

	// Опрос статуса задачи
	for {
		time.Sleep(5 * time.Second)

		status, err := fetchStatus(serverAddr, taskID)
		if err != nil {
			log.Fatalf("Не удалось опросить статус задачи: %v", err)
		}

		fmt.Printf("Статус задачи: %s\n", status.Status)

		switch status.Status {
		case "completed":
			if err := saveResult(serverAddr, taskID, outFile); err != nil {
				log.Fatalf("Не удалось сохранить результат: %v", err)
			}
			fmt.Printf("Результат сохранен в %s\n", outFile)
			return
		case "failed":
			log.Fatalf("Экспорт завершился с ошибкой: %s", status.ErrorMessage)
		}
	}
}

// fetchStatus запрашивает статус задачи у сервера.
func fetchStatus(serverAddr, taskID string) (*taskStatusResponse, error) {
	resp, err := http.Get(fmt.Sprintf("%s/api/v1/tasks/%s", serverAddr, taskID))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("сервер вернул статус: %d", resp.StatusCode)
	}

	var status taskStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, err
	}
	return &status, nil
}

// saveResult скачивает результат завершенной задачи в файл.
func saveResult(serverAddr, taskID, outFile string) error {
	resp, err := http.Get(fmt.Sprintf("%s/api/v1/tasks/%s/result", serverAddr, taskID))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("сервер вернул статус: %d", resp.StatusCode)
	}

	out, err := os.Create(outFile)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, resp.Body)
	return err
}
