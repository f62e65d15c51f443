package ports

import "context"

// Renderer — один экземпляр сервиса, через который открываются сессии с реестром.
type Renderer interface {
	SessionProvider
	// Health проверяет, что экземпляр готов открывать сессии.
	Health(ctx context.Context) error
	ID() string
}

// Strategy определяет интерфейс для стратегии выбора экземпляра.
type Strategy interface {
	Next(renderers []Renderer) (Renderer, error)
}
