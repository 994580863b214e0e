package groupbuy

const (
	TopicProductCreated = "groupbuy.product.created"
	TopicProductUpdated = "groupbuy.product.updated"
	TopicProductDeleted = "groupbuy.product.deleted"
	TopicOrderJoined    = "groupbuy.order.joined"
	TopicGroupCompleted = "groupbuy.group.completed"
)

var topicByEvent = map[string]string{
	EventProductCreated: TopicProductCreated,
	EventProductUpdated: TopicProductUpdated,
	EventProductDeleted: TopicProductDeleted,
	EventOrderJoined:    TopicOrderJoined,
	EventGroupCompleted: TopicGroupCompleted,
}

func TopicFor(eventType string) string { return topicByEvent[eventType] }

// Partition key = product_id, supaya semua event 1 group order tetap urut.
func PartitionKey(productID string) []byte { return []byte(productID) }
