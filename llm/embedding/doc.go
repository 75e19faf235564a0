// Copyright 2025-2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by a MIT license that can be
// found in the LICENSE file.

/*
包 embedding 把文本转换为定长向量，供向量索引与混合检索使用。

# 核心类型

  - Provider：外部 embedding 服务的统一接口，内置 OpenAIProvider
    与 AzureOpenAIProvider，二者共用 BaseProvider 的 HTTP 与错误映射逻辑。
  - Service：面向检索流水线的入口，负责缓存、去重、截断、分批、
    并发与限速，并在外部服务不可用时退化为确定性回退向量。
  - Cache：向量缓存接口，MemoryCache 为无界进程内实现，
    RedisCache 在其之上叠加基于 internal/cache 的共享层。

# 回退向量

FallbackVector 由输入的 sha256 摘要派生，每个字节映射到 [-1, 1]
后平铺到目标维度。它不具备语义，只保证相同输入得到逐位相同的向量，
使下游在离线或故障时仍拿到形状正确的数据。

# 使用方式

	svc := embedding.NewService(embedding.DefaultServiceConfig(), logger,
	    embedding.WithProvider(embedding.NewOpenAIProvider(cfg)))

	vec, err := svc.EmbedQuery(ctx, "搜索关键词")
	vecs, err := svc.EmbedDocuments(ctx, []string{"文档1", "文档2"})
*/
package embedding
