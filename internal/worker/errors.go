package worker

import "errors"

// Ошибки воркера.
var (
	// ErrJobNotFound — job не найден в хранилище или истёк.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobNotPending — job уже выполняется или завершён.
	ErrJobNotPending = errors.New("job is not in PENDING status")

	// ErrJobCancelled — выполнение job прервано отменой контекста.
	ErrJobCancelled = errors.New("job cancelled")

	// ErrNodeTimeout — вызов модели превысил таймаут узла.
	ErrNodeTimeout = errors.New("node timeout")

	// ErrUnknownSkill — узел ссылается на skill, которого нет в каталоге.
	ErrUnknownSkill = errors.New("unknown skill")

	// ErrRetryExhausted — все попытки вызова модели исчерпаны.
	ErrRetryExhausted = errors.New("retry attempts exhausted")
)
