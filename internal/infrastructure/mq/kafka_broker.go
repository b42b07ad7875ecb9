package mq

import (
	"context"
	"errors"
	"io"
	"sync"

	myconfig "kama_chat_client/internal/config"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaBroker 多实例模式
// 以 chatId 作为消息 Key，配合 Hash 分区保证同一聊天室的帧在一个分区内有序
type KafkaBroker struct {
	conf       *myconfig.KafkaConfig
	ChatWriter *kafka.Writer

	mu         sync.Mutex
	ChatReader *kafka.Reader
}

// NewKafkaBroker 创建 Kafka 代理，Reader 在 Run 时才创建
func NewKafkaBroker(conf *myconfig.KafkaConfig) *KafkaBroker {
	return &KafkaBroker{
		conf:       conf,
		ChatWriter: newChatWriter(conf),
	}
}

func newChatWriter(conf *myconfig.KafkaConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(conf.HostPort),
		Topic:                  conf.ChatTopic,
		Balancer:               &kafka.Hash{},
		WriteTimeout:           conf.Timeout,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: false,
	}
}

func newChatReader(conf *myconfig.KafkaConfig) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        []string{conf.HostPort},
		Topic:          conf.ChatTopic,
		CommitInterval: conf.Timeout,
		// 每个 relay 实例使用自己的消费组，才能收到全部消息
		GroupID:     conf.GroupId,
		StartOffset: kafka.LastOffset,
	})
}

// CreateTopic 创建 topic，已存在时 Kafka 返回的错误只记录日志
func (k *KafkaBroker) CreateTopic() error {
	conn, err := kafka.Dial("tcp", k.conf.HostPort)
	if err != nil {
		return err
	}
	defer conn.Close()

	partitions := k.conf.Partition
	if partitions <= 0 {
		partitions = 1
	}
	if err := conn.CreateTopics(kafka.TopicConfig{
		Topic:             k.conf.ChatTopic,
		NumPartitions:     partitions,
		ReplicationFactor: 1,
	}); err != nil {
		zap.L().Warn("create kafka topic", zap.String("topic", k.conf.ChatTopic), zap.Error(err))
	}
	return nil
}

func (k *KafkaBroker) Publish(ctx context.Context, env Envelope) error {
	return k.ChatWriter.WriteMessages(ctx, kafka.Message{
		Key:   []byte(env.ChatID),
		Value: env.Frame,
	})
}

// Run 后台死循环：从 Kafka 读取消息并交给 deliver
func (k *KafkaBroker) Run(ctx context.Context, deliver func(Envelope)) error {
	reader := newChatReader(k.conf)
	k.mu.Lock()
	k.ChatReader = reader
	k.mu.Unlock()
	for {
		m, err := reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		deliver(Envelope{ChatID: string(m.Key), Frame: m.Value})
	}
}

func (k *KafkaBroker) Close() error {
	var errs []error
	if err := k.ChatWriter.Close(); err != nil {
		zap.L().Error(err.Error())
		errs = append(errs, err)
	}
	k.mu.Lock()
	reader := k.ChatReader
	k.mu.Unlock()
	if reader != nil {
		if err := reader.Close(); err != nil {
			zap.L().Error(err.Error())
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
