// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — соединение с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений
//   - consumer.go   — потребление сообщений с ручным ack/nack
//
// Типы сообщений:
//   - job.pending — job сохранён в статусе PENDING и ждёт worker
//
// Exchanges:
//   - skilldag.jobs — события jobs
//   - skilldag.dlq  — dead letter queue
package mq
