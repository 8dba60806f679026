package dynamodb

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	awsv2dynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsv2types "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	awsv2xray "github.com/aws/aws-xray-sdk-go/instrumentation/awsv2"
	"github.com/aws/aws-xray-sdk-go/xray"

	"ecselfservice/internal/domain"
)

// API is the subset of the DynamoDB client the repository uses.
type API interface {
	PutItem(ctx context.Context, params *awsv2dynamodb.PutItemInput, optFns ...func(*awsv2dynamodb.Options)) (*awsv2dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *awsv2dynamodb.GetItemInput, optFns ...func(*awsv2dynamodb.Options)) (*awsv2dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *awsv2dynamodb.UpdateItemInput, optFns ...func(*awsv2dynamodb.Options)) (*awsv2dynamodb.UpdateItemOutput, error)
}

type Client struct {
	db        API
	tableName string
}

func NewClient(ctx context.Context, region, tableName string) (*Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	awsv2xray.AWSV2Instrumentor(&cfg.APIOptions)
	return &Client{db: awsv2dynamodb.NewFromConfig(cfg), tableName: tableName}, nil
}

func NewClientWithAPI(db API, tableName string) *Client {
	return &Client{db: db, tableName: tableName}
}

func userPK(login string) string { return "USER#" + login }
func profileSK() string          { return "PROFILE" }

func userKey(login string) map[string]awsv2types.AttributeValue {
	return map[string]awsv2types.AttributeValue{
		"PK": &awsv2types.AttributeValueMemberS{Value: userPK(login)},
		"SK": &awsv2types.AttributeValueMemberS{Value: profileSK()},
	}
}

func isConditionalCheckFailure(err error) bool {
	var condErr *awsv2types.ConditionalCheckFailedException
	return errors.As(err, &condErr)
}

type teamRecord struct {
	Name     string `dynamodbav:"Name"`
	Slug     string `dynamodbav:"Slug"`
	IsMember bool   `dynamodbav:"IsMember"`
}

type userRecord struct {
	PK         string       `dynamodbav:"PK"`
	SK         string       `dynamodbav:"SK"`
	EntityType string       `dynamodbav:"EntityType"`
	Login      string       `dynamodbav:"Login"`
	Avatar     string       `dynamodbav:"Avatar"`
	Roles      []string     `dynamodbav:"Roles"`
	Teams      []teamRecord `dynamodbav:"Teams"`
	LastSeen   string       `dynamodbav:"LastSeen"`
}

// UserRepository stores login profiles, one item per user.
type UserRepository struct{ client *Client }

func NewUserRepository(client *Client) *UserRepository {
	return &UserRepository{client: client}
}

// Save replaces the whole profile; profiles are rebuilt on every login.
func (r *UserRepository) Save(ctx context.Context, user domain.User) error {
	record := userRecord{
		PK:         userPK(user.ID),
		SK:         profileSK(),
		EntityType: "USER",
		Login:      user.ID,
		Avatar:     user.Avatar,
		Roles:      make([]string, 0, len(user.Roles)),
		Teams:      make([]teamRecord, 0, len(user.Teams)),
		LastSeen:   user.LastSeen.UTC().Format(time.RFC3339),
	}
	for _, role := range user.Roles {
		record.Roles = append(record.Roles, role.String())
	}
	for _, team := range user.Teams {
		record.Teams = append(record.Teams, teamRecord{Name: team.Name, Slug: team.Slug, IsMember: team.IsMember})
	}
	av, err := attributevalue.MarshalMap(record)
	if err != nil {
		return err
	}
	return xray.Capture(ctx, "DynamoDB.PutUser", func(ctx context.Context) error {
		_, err := r.client.db.PutItem(ctx, &awsv2dynamodb.PutItemInput{
			TableName: aws.String(r.client.tableName),
			Item:      av,
		})
		return err
	})
}

func (r *UserRepository) Get(ctx context.Context, login string) (domain.User, error) {
	var out *awsv2dynamodb.GetItemOutput
	err := xray.Capture(ctx, "DynamoDB.GetUser", func(ctx context.Context) error {
		var e error
		out, e = r.client.db.GetItem(ctx, &awsv2dynamodb.GetItemInput{
			TableName: aws.String(r.client.tableName),
			Key:       userKey(login),
		})
		return e
	})
	if err != nil {
		return domain.User{}, err
	}
	if out.Item == nil {
		return domain.User{}, domain.ErrNotFound
	}
	var record userRecord
	if err := attributevalue.UnmarshalMap(out.Item, &record); err != nil {
		return domain.User{}, err
	}
	user := domain.User{
		ID:     record.Login,
		Avatar: record.Avatar,
		Roles:  make([]domain.Permission, 0, len(record.Roles)),
		Teams:  make([]domain.TeamMembership, 0, len(record.Teams)),
	}
	for _, raw := range record.Roles {
		role, err := domain.ParsePermission(raw)
		if err != nil {
			return domain.User{}, err
		}
		user.Roles = append(user.Roles, role)
	}
	for _, team := range record.Teams {
		user.Teams = append(user.Teams, domain.TeamMembership{Name: team.Name, Slug: team.Slug, IsMember: team.IsMember})
	}
	user.LastSeen, _ = time.Parse(time.RFC3339, record.LastSeen)
	return user, nil
}

// Touch updates LastSeen of an existing profile.
func (r *UserRepository) Touch(ctx context.Context, login string, lastSeen time.Time) error {
	return xray.Capture(ctx, "DynamoDB.TouchUser", func(ctx context.Context) error {
		_, err := r.client.db.UpdateItem(ctx, &awsv2dynamodb.UpdateItemInput{
			TableName:        aws.String(r.client.tableName),
			Key:              userKey(login),
			UpdateExpression: aws.String("SET LastSeen = :s"),
			ExpressionAttributeValues: map[string]awsv2types.AttributeValue{
				":s": &awsv2types.AttributeValueMemberS{Value: lastSeen.UTC().Format(time.RFC3339)},
			},
			ConditionExpression: aws.String("attribute_exists(PK)"),
		})
		if isConditionalCheckFailure(err) {
			return domain.ErrNotFound
		}
		return err
	})
}
