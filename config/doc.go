// Package config 提供 AgentLoop 的配置管理功能。
//
// 包含配置加载（默认值 → YAML → 环境变量）、校验以及基于轮询的
// 配置文件重载。
package config
