package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	jsoniter "github.com/json-iterator/go"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/openpolls/api.openpolls.dev/model"
	"github.com/openpolls/api.openpolls.dev/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const pollCacheTTL = time.Hour * 6

// Store implements store.Store on mongodb, with a redis read-through cache on
// the poll read path. Known-missing polls are tombstoned as "dead".
type Store struct {
	db  *mongo.Database
	rdb *redis.Client
}

func NewStore(db *mongo.Database, rdb *redis.Client) *Store {
	return &Store{db: db, rdb: rdb}
}

func (s *Store) users() *mongo.Collection  { return s.db.Collection("users") }
func (s *Store) polls() *mongo.Collection  { return s.db.Collection("polls") }
func (s *Store) tokens() *mongo.Collection { return s.db.Collection("refreshTokens") }

func pollCacheKey(id primitive.ObjectID) string {
	return fmt.Sprintf("cached:polls:%s", id.Hex())
}

func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	res, err := s.users().InsertOne(ctx, u)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrDuplicateEmail
		}
		return err
	}
	u.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (s *Store) FindUsers(ctx context.Context) ([]model.User, error) {
	cur, err := s.users().Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"password": 0}))
	if err != nil {
		return nil, err
	}
	users := []model.User{}
	if err = cur.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) FindUserByID(ctx context.Context, id primitive.ObjectID) (*model.User, error) {
	user := &model.User{}
	err := s.users().FindOne(ctx, bson.M{"_id": id}, options.FindOne().SetProjection(bson.M{"password": 0})).Decode(user)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	user := &model.User{}
	err := s.users().FindOne(ctx, bson.M{"email": email}).Decode(user)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Store) SaveUser(ctx context.Context, u *model.User) error {
	u.UpdatedAt = time.Now()
	set := bson.M{
		"email":      u.Email,
		"name":       u.Name,
		"role":       u.Role,
		"updated_at": u.UpdatedAt,
	}
	if u.Password != "" {
		set["password"] = u.Password
	}
	_, err := s.users().UpdateOne(ctx, bson.M{"_id": u.ID}, bson.M{"$set": set})
	if mongo.IsDuplicateKeyError(err) {
		return store.ErrDuplicateEmail
	}
	return err
}

func (s *Store) DeleteUser(ctx context.Context, id primitive.ObjectID) (bool, error) {
	res, err := s.users().DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (s *Store) CreatePoll(ctx context.Context, p *model.Poll) error {
	res, err := s.polls().InsertOne(ctx, p)
	if err != nil {
		return err
	}
	p.ID = res.InsertedID.(primitive.ObjectID)
	s.cachePoll(ctx, p)
	return nil
}

func (s *Store) FindPolls(ctx context.Context) ([]model.Poll, error) {
	cur, err := s.polls().Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	polls := []model.Poll{}
	if err = cur.All(ctx, &polls); err != nil {
		return nil, err
	}
	return polls, nil
}

func (s *Store) FindPollByID(ctx context.Context, id primitive.ObjectID) (*model.Poll, error) {
	key := pollCacheKey(id)

	val, err := s.rdb.Get(ctx, key).Result()
	if err != nil && err != redis.Nil {
		log.Errorf("redis, err=%v", err)
	}
	if err == nil {
		if val == "dead" {
			return nil, nil
		}
		poll := &model.Poll{}
		if err = json.UnmarshalFromString(val, poll); err == nil {
			return poll, nil
		}
		log.Errorf("json, err=%v", err)
	}

	poll := &model.Poll{}
	err = s.polls().FindOne(ctx, bson.M{"_id": id}).Decode(poll)
	if err == mongo.ErrNoDocuments {
		if err = s.rdb.Set(ctx, key, "dead", pollCacheTTL).Err(); err != nil {
			log.Errorf("redis, err=%v", err)
		}
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	s.cachePoll(ctx, poll)
	return poll, nil
}

func (s *Store) SavePoll(ctx context.Context, p *model.Poll) error {
	_, err := s.polls().ReplaceOne(ctx, bson.M{"_id": p.ID}, p)
	if err != nil {
		return err
	}
	s.cachePoll(ctx, p)
	return nil
}

func (s *Store) DeletePoll(ctx context.Context, id primitive.ObjectID) (bool, error) {
	res, err := s.polls().DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	if err = s.rdb.Set(ctx, pollCacheKey(id), "dead", pollCacheTTL).Err(); err != nil {
		log.Errorf("redis, err=%v", err)
	}
	return res.DeletedCount > 0, nil
}

func (s *Store) cachePoll(ctx context.Context, p *model.Poll) {
	pollStr, err := json.MarshalToString(p)
	if err != nil {
		log.Errorf("json, err=%v", err)
		return
	}
	if err = s.rdb.Set(ctx, pollCacheKey(p.ID), pollStr, pollCacheTTL).Err(); err != nil {
		log.Errorf("redis, err=%v", err)
	}
}

func (s *Store) CreateRefreshToken(ctx context.Context, t *model.RefreshToken) error {
	res, err := s.tokens().InsertOne(ctx, t)
	if err != nil {
		return err
	}
	t.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (s *Store) FindRefreshToken(ctx context.Context, token string) (*model.RefreshToken, error) {
	t := &model.RefreshToken{}
	err := s.tokens().FindOne(ctx, bson.M{"token": token}).Decode(t)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Store) SaveRefreshToken(ctx context.Context, t *model.RefreshToken) error {
	_, err := s.tokens().UpdateOne(ctx, bson.M{"_id": t.ID}, bson.M{"$set": bson.M{
		"expiration": t.Expiration,
	}})
	return err
}
