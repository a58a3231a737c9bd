/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package queue

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// BrokerConfig holds the connection settings for the Redis job broker.
type BrokerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// DB selects the logical Redis database holding job state.
	DB       int    `yaml:"db"`
	Password string `yaml:"password"`
	// Prefix namespaces every key written by this process. Defaults to
	// "tripmailer".
	Prefix string `yaml:"prefix"`
}

// Addr returns the host:port dial address.
func (c BrokerConfig) Addr() string {
	host := c.Host
	if host == "" {
		host = "localhost"
	}
	port := c.Port
	if port == 0 {
		port = 6379
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// Broker owns the single Redis connection shared by every queue and worker in
// the process. It is created once at startup and closed last during shutdown,
// after all workers and queues have been drained.
type Broker struct {
	client *redis.Client
	prefix string
	log    *zap.SugaredLogger
}

// Connect establishes the broker connection and verifies it with a ping.
// An unreachable broker at startup is fatal for the process, so the caller is
// expected to abort on error. Command-level retries are disabled
// (MaxRetries -1): retry is a queue/worker policy decision, never the
// client's.
func Connect(ctx context.Context, cfg BrokerConfig, log *zap.SugaredLogger) (*Broker, error) {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "tripmailer"
	}

	client := redis.NewClient(&redis.Options{
		Addr:       cfg.Addr(),
		DB:         cfg.DB,
		Password:   cfg.Password,
		MaxRetries: -1,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to job broker at %s (db %d): %w", cfg.Addr(), cfg.DB, err)
	}

	log.Infow("connected to job broker", "addr", cfg.Addr(), "db", cfg.DB, "prefix", prefix)

	return &Broker{client: client, prefix: prefix, log: log}, nil
}

// Client exposes the underlying Redis client for queue operations.
func (b *Broker) Client() *redis.Client { return b.client }

// Prefix returns the key namespace of this broker connection.
func (b *Broker) Prefix() string { return b.prefix }

// Close releases the broker connection. Must only be called after every
// worker and queue created from this broker has been closed; closing the
// connection first risks losing in-flight job state.
func (b *Broker) Close() error {
	b.log.Infow("closing job broker connection", "prefix", b.prefix)
	return b.client.Close()
}
