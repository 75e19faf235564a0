// Copyright 2025-2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by a MIT license that can be
// found in the LICENSE file.

/*
包 metrics 提供基于 Prometheus 的检索流水线指标采集能力，覆盖
分块、embedding、缓存、检索与索引五个维度。

# 核心类型

  - Collector：指标收集器，通过 promauto.With 注册到调用方给定的
    Registerer（为 nil 时使用默认 Registry），所有指标按 namespace 隔离。

# 主要能力

  - 分块指标：按 splitter 统计产出块数。
  - Embedding 指标：请求总数与耗时按 provider/status 分组，
    文本按来源（provider/cache/fallback）计数。
  - 缓存指标：命中与未命中计数，按 cache_type 分组。
  - 检索指标：按 pass（vector/keyword/hybrid）统计耗时。
  - 索引指标：按 collection 记录条目数 Gauge。

nil *Collector 上的所有记录方法都是空操作，组件可以在未启用指标时直接传 nil。
*/
package metrics
