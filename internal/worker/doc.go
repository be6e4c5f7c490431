// Package worker выполняет DAG jobs.
//
// # Runner
//
// Runner — ядро выполнения. Для одного job он:
//
//  1. Строит DAG и вычисляет уровни узлов (engine.BuildDAG)
//  2. Переводит job в RUNNING и сохраняет порядок выполнения
//  3. Для каждого узла по порядку: если зависимость FAILED или SKIPPED,
//     узел SKIPPED; иначе рендерит промпт, добавляет выводы зависимостей
//     и вызывает модель с таймаутом узла
//  4. Вычисляет итоговый статус (COMPLETED / PARTIAL / FAILED)
//
// Узлы выполняются строго последовательно, параллельного запуска
// независимых веток нет. Job сохраняется после каждого перехода узла.
//
// # Retry
//
// Повторяются только временные ошибки модели (llm.IsRetryable:
// 408, 409, 429, 5xx) и таймаут узла. По умолчанию MaxAttempts = 1,
// то есть без повторов.
//
// Стратегии backoff:
//   - "exponential": delay = initialDelay * 2^(attempt-1), capped at maxDelay
//   - "fixed": delay = initialDelay
//
// # Worker
//
// Worker — async режим: потребляет job.pending из RabbitMQ и передаёт
// job в Runner. Ошибка хранилища возвращает сообщение в очередь
// (один раз), битый payload сразу уходит в DLQ.
package worker
