// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 ragcore 命令行程序入口。

# 概述

cmd/ragcore 把 rag 包的分块、向量化、内存索引与混合检索串成一条
本地命令行流水线。程序支持 YAML 配置文件与 RAGCORE_* 环境变量覆盖、
结构化日志（zap）、Prometheus 指标输出以及可选的 OpenTelemetry 导出。

# 核心类型

  - app         — 一次命令执行所需的全部组件（配置、日志、指标、缓存、流水线）
  - commonFlags — 各子命令共用的 --config / --file / --metrics 参数

# 主要能力

  - 子命令：split（输出分块）、ingest（导入并输出索引统计）、
    search（导入后按 hybrid / vector / keyword 检索）、version、help
  - Embedding 缓存：embedding.cache=redis 时使用 Redis，不可用时退回进程内缓存
  - 指标：--metrics 在退出时以 Prometheus 文本格式写入 stderr
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
