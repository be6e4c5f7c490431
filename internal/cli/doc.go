// Package cli реализует инструмент командной строки skilldag.
//
// # Обзор
//
// CLI — клиентская утилита для skilldag API. Работает через HTTP
// и не импортирует внутренние пакеты сервера: типы ответов
// продублированы в client.go.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент API. Разбирает конверты ответов (data / error)
// и превращает ответ с ошибкой в *APIError.
//
//	client := cli.NewClient("http://localhost:8080")
//	job, err := client.GetJob(ctx, id)
//
// ## Output
//
// Форматирование вывода: таблицы (text/tabwriter) по умолчанию,
// JSON с флагом --json. Данные идут в stdout, сообщения в stderr,
// поэтому работает pipe: skilldag job show ID --json | jq .
//
// ## DAG файлы
//
// LoadDAGFile читает описание DAG из YAML или JSON
// (JSON — подмножество YAML, разбирается тем же парсером).
//
// ## Commands
//
//   - job: run, show
//   - skills
//   - health
package cli
