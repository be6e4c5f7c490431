// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go       — Handler с DI (хранилище, runner, limiter, publisher, logger)
//   - routes.go        — регистрация маршрутов
//   - middleware.go    — middleware (recovery, logging, metrics, CORS)
//   - response.go      — унифицированные JSON-ответы и обработка ошибок
//   - dto.go           — Data Transfer Objects (request/response) и их валидация
//   - job_handler.go   — обработчики для /jobs
//   - skill_handler.go — обработчики для /skills
//   - health.go        — /healthz
//
// API принимает DAG из не более чем 8 узлов-промптов, выполняет его
// (синхронно или через очередь) и отдаёт статусы и ответы по узлам.
package api
