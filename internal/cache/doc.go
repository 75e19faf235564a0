// Copyright 2025-2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by a MIT license that can be
// found in the LICENSE file.

/*
包 cache 提供基于 Redis 的共享缓存，供 embedding 服务在多进程间复用向量。

# 核心类型

  - Manager：持有 go-redis 客户端，提供带键前缀的 Get/Set/GetMulti/Delete，
    以及 GetJSON/SetJSON 便捷序列化方法。
  - Config：地址、密码、连接池、键前缀与默认 TTL。

未命中统一返回 ErrCacheMiss，可用 IsCacheMiss 判断。
*/
package cache
