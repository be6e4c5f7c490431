// Package store хранит jobs с ограниченным временем жизни.
//
// Реализации JobStore:
//   - MemoryStore   — map в памяти процесса (по умолчанию, для одного инстанса)
//   - RedisStore    — ключ job:<id> с TTL, общий для api и worker
//   - PostgresStore — таблица jobs, просроченные записи удаляет janitor
//
// Запись job всегда перезаписывается целиком: последняя запись выигрывает.
package store
