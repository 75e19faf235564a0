// Copyright 2025-2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

Package rag 提供多语言文档的分块、向量索引与混合检索。

数据流：文本经 Splitter 或 MultilingualSplitter 切成有序的 Chunk，
由 Embedder 向量化后写入 VectorIndex；查询时 HybridRanker 同时执行
向量检索与关键词检索，按通道权重累加得分后排序。Pipeline 把这些组件
组合为一组库接口，所有组件都由调用方创建并注入。

# 核心接口/类型

  - TextSplitter — 分块器接口（Splitter / MultilingualSplitter）
  - Chunk — 文档块，附带位置、字数、词数和可选的 token 数
  - Tokenizer — 分块使用的 token 计数接口，LLMTokenizerAdapter 适配 llm/tokenizer
  - VectorIndex — 按集合划分的向量索引接口，MemoryIndex 为进程内实现
  - HybridRanker — 向量 + 关键词的加权融合检索
  - Pipeline — 对外库接口（分块、向量化、写入、检索、删除、统计、整篇导入）

# 分块规则

长度按字符（rune）计。分隔符按优先级递归切分，片段贪心累积到
ChunkSize；分隔符用尽时按窗口 ChunkSize、步长 ChunkSize-ChunkOverlap
强制切分。切分后向前合并过短的块，修剪空白并丢弃空块。
SplitWithOverlap 为每块加上前一块末尾 ChunkOverlap 个字符，
因此块长可能超过 ChunkSize，最多超出 ChunkOverlap。

MultilingualSplitter 在切分前折叠阿拉伯字母变体、去掉附加符号、
压缩空白，切分后去掉块首的连接词。

# 检索规则

  - 向量检索：余弦相似度，任一向量范数为 0 时得分为 0，同分按 id 升序
  - 关键词检索：命中关键词数 / 关键词数，0 分不返回
  - 混合检索：每个通道取 2k 个候选，得分 = Σ 通道得分 × 通道权重

# 使用方式

	splitter, _ := rag.NewMultilingualSplitter(rag.DefaultSplitterConfig(), logger)
	index := rag.NewMemoryIndex(logger)
	ranker, _ := rag.NewHybridRanker(index, svc, rag.DefaultHybridConfig(), logger)
	p, _ := rag.NewPipeline(splitter, svc, index, ranker, logger)

	ids, err := p.IngestText(ctx, "general", "doc1", text, nil)
	results, err := p.HybridSearch(ctx, "general", "搜索关键词", 5, nil)
*/
package rag
