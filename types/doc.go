// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 ragcore 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 rag、llm/embedding、config
等上层模块提供统一的错误契约。

# 核心类型

  - Error / ErrorCode — 结构化错误体系，含 HTTP 状态码、Retryable、Provider 标记
  - ErrValidation        — 调用方输入错误（空文本、k ≤ 0、空查询向量）
  - ErrDimensionMismatch — 程序错误：向量维度与集合维度不一致
  - ErrProvider          — 外部 embedding 调用失败（仅在 embedding 包内部使用，永不外泄）
  - ErrNotFound          — 按 ID 读取不存在的条目

# 主要能力

  - 错误工具链：AsError / IsErrorCode / IsValidation / IsDimensionMismatch / IsRetryable
*/
package types
