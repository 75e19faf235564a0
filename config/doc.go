// Package config 提供 ragcore 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → 环境变量 的顺序叠加，
// 覆盖分块、embedding、检索、Redis 缓存、日志、遥测与指标各部分。
package config
