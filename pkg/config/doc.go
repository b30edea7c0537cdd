// Package config loads typed configuration structs from environment
// variables with github.com/caarlos0/env, optionally seeded from dotenv files
// through github.com/joho/godotenv.
//
// Every package that needs settings declares its own struct with env tags
// (see tasks.Config, lock.Config, redis.Config). Load parses each struct
// type once and serves later calls from a cache, so components can load
// their configuration independently without reparsing.
package config
