// Package cacheprov provides a Redis read-through content cache that
// decorates another IO provider.
package cacheprov

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/BaSui01/fetchflow/provider"
)

// =============================================================================
// 💾 读穿内容缓存
// =============================================================================
// 小对象在首次打开时整体读入并写进 Redis，后续请求直接从缓存内存中
// 按区间读取；超过 MaxObjectSize 的对象直接透传给内层后端。同一路径
// 的并发打开通过 singleflight 合并，避免缓存击穿。
// =============================================================================

// Config 缓存配置
type Config struct {
	// Redis 地址
	Addr string `yaml:"addr" json:"addr" env:"ADDR"`

	// 密码
	Password string `yaml:"password" json:"password" env:"PASSWORD"`

	// 数据库编号
	DB int `yaml:"db" json:"db" env:"DB"`

	// 缓存过期时间
	TTL time.Duration `yaml:"ttl" json:"ttl" env:"TTL"`

	// 可缓存对象的大小上限，超过则透传
	MaxObjectSize int64 `yaml:"max_object_size" json:"max_object_size" env:"MAX_OBJECT_SIZE"`

	// 缓存键前缀
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix" env:"KEY_PREFIX"`
}

// DefaultConfig 返回默认缓存配置
func DefaultConfig() Config {
	return Config{
		Addr:          "localhost:6379",
		TTL:           5 * time.Minute,
		MaxObjectSize: 8 * 1024 * 1024,
		KeyPrefix:     "fetchflow:content:",
	}
}

// Provider 读穿缓存装饰器
type Provider struct {
	inner  provider.Provider
	redis  *redis.Client
	config Config
	sf     singleflight.Group
	logger *zap.Logger
}

// New 创建缓存装饰器并验证 Redis 连接
func New(inner provider.Provider, config Config, logger *zap.Logger) (*Provider, error) {
	if config.TTL <= 0 {
		config.TTL = DefaultConfig().TTL
	}
	if config.MaxObjectSize <= 0 {
		config.MaxObjectSize = DefaultConfig().MaxObjectSize
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = DefaultConfig().KeyPrefix
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Provider{
		inner:  inner,
		redis:  client,
		config: config,
		logger: logger.With(zap.String("component", "cache_provider")),
	}, nil
}

// Close 关闭 Redis 连接
func (p *Provider) Close() error {
	return p.redis.Close()
}

func (p *Provider) key(path string) string {
	return p.config.KeyPrefix + path
}

// OpenAndSize 先查缓存，未命中时打开内层后端；小对象整体读入并回填
// 缓存，大对象直接透传内层句柄。
func (p *Provider) OpenAndSize(path string) (provider.File, int64, error) {
	type opened struct {
		file provider.File
		size int64
	}
	v, err, _ := p.sf.Do(path, func() (interface{}, error) {
		f, size, err := p.openOnce(path)
		if err != nil {
			return nil, err
		}
		return opened{file: f, size: size}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	o := v.(opened)
	return o.file, o.size, nil
}

func (p *Provider) openOnce(path string) (provider.File, int64, error) {
	ctx := context.Background()

	// 缓存命中：直接从内存切片按区间服务
	data, err := p.redis.Get(ctx, p.key(path)).Bytes()
	if err == nil {
		p.logger.Debug("content cache hit", zap.String("path", path), zap.Int("size", len(data)))
		return &memFile{data: data}, int64(len(data)), nil
	}
	if !errors.Is(err, redis.Nil) {
		p.logger.Warn("cache lookup failed, falling through", zap.String("path", path), zap.Error(err))
	}

	f, size, err := p.inner.OpenAndSize(path)
	if err != nil {
		return nil, 0, err
	}

	// 大对象或大小未知：透传
	if size <= 0 || size > p.config.MaxObjectSize {
		return f, size, nil
	}

	// 小对象：整体读入、回填缓存、用内存句柄替代内层句柄
	data = make([]byte, size)
	if _, err := io.ReadFull(newSectionReader(f, size), data); err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("prefetch %s: %w", path, err)
	}
	f.Close()

	if err := p.redis.Set(ctx, p.key(path), data, p.config.TTL).Err(); err != nil {
		p.logger.Warn("cache fill failed", zap.String("path", path), zap.Error(err))
	} else {
		p.logger.Debug("content cached", zap.String("path", path), zap.Int64("size", size))
	}
	return &memFile{data: data}, size, nil
}

func newSectionReader(f provider.File, size int64) io.Reader {
	return io.NewSectionReader(f, 0, size)
}

// memFile 基于内存切片的只读句柄
type memFile struct {
	data []byte
}

func (f *memFile) ReadAt(dst []byte, off int64) (int, error) {
	r := bytes.NewReader(f.data)
	return r.ReadAt(dst, off)
}

func (f *memFile) Close() error {
	return nil
}
