/*
包 cache 提供基于 Redis 的共享连接与缓存操作。

# 概述

Manager 封装 go-redis 客户端，负责连接生命周期（初始化、健康检查、
优雅关闭）。agentloop 中有两个使用方：

  - prompt.CachedSource：用 Get/Set 缓存 hub 拉取的提示模板（带 TTL）。
  - memory.RedisStore：用 AppendCapped/Range 持久化会话窗口，
    列表长度始终裁剪到窗口大小 k。

# 错误语义

未命中返回哨兵错误 ErrCacheMiss，可用 IsCacheMiss 判断。
*/
package cache
