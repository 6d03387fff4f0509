package config

import "github.com/eoffice/docflow/analytics"

type StorageType string

const STORAGE_TYPE_REDIS StorageType = "redis"
const STORAGE_TYPE_INMEM StorageType = "memory"

type Config struct {
	RedisConfig        RedisStorageConfig
	InMemoryConfig     InmemStorageConfig
	HttpPort           int
	StorageType        StorageType
	TimerWheelSize     int64
	ReminderIntervalHr int
	AnalyticsConfig    analytics.DataCollectorConfig
}

type RedisStorageConfig struct {
	Addrs     []string
	Namespace string
}

type InmemStorageConfig struct {
}
