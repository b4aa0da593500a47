package userstore

import (
	"fmt"
	"time"

	"github.com/dalemusser/usergrid/internal/dataset"
	"github.com/spf13/cast"
)

// FromRecord converts a submitted record into a User and its status. A
// record without __status is treated as an add when it has no id and an
// update otherwise. Dates may be YYYY-MM-DD or RFC 3339 timestamps.
func FromRecord(rec dataset.Record) (Change, error) {
	var u User
	var err error

	if v, ok := rec["id"]; ok && v != nil {
		if u.ID, err = cast.ToInt64E(v); err != nil {
			return Change{}, fmt.Errorf("id: %w", err)
		}
	}
	u.Name = rec.String("name")
	u.Code = rec.String("code")
	u.Sex = rec.String("sex")
	u.Email = rec.String("email")

	if v, ok := rec["active"]; ok && v != nil {
		if u.Active, err = cast.ToBoolE(v); err != nil {
			return Change{}, fmt.Errorf("active: %w", err)
		}
	}
	if v := rec["age"]; v != nil && rec.String("age") != "" {
		n, ok := rec.Number("age")
		if !ok {
			return Change{}, fmt.Errorf("age: %v is not a number", v)
		}
		a := int(n)
		u.Age = &a
	}
	if s := rec.String("startDate"); s != "" {
		if u.StartDate, err = normalizeDate(s); err != nil {
			return Change{}, fmt.Errorf("startDate: %w", err)
		}
	}

	status := dataset.Status(rec.String(dataset.StatusKey))
	if status == "" {
		status = dataset.StatusUpdate
		if u.ID == 0 {
			status = dataset.StatusAdd
		}
	}
	return Change{Status: status, User: u}, nil
}

func normalizeDate(s string) (string, error) {
	if t, err := time.Parse(dataset.DateLayout, s); err == nil {
		return t.Format(dataset.DateLayout), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return "", fmt.Errorf("%q is not a date", s)
	}
	return t.Format(dataset.DateLayout), nil
}

func intp(n int) *int { return &n }

// DemoUsers are the rows seeded into an empty database.
func DemoUsers() []User {
	return []User{
		{Name: "王小明", Code: "HR0001", Sex: "M", Active: true, Age: intp(28), Email: "xiaoming.wang@hand-china.com", StartDate: "2018-03-12"},
		{Name: "李华", Code: "HR0002", Sex: "F", Active: true, Age: intp(34), Email: "lihua@163.com", StartDate: "2016-07-01"},
		{Name: "张伟", Code: "HR0003", Sex: "M", Active: false, Age: intp(45), Email: "zhangwei@qq.com", StartDate: "2010-11-20"},
		{Name: "刘洋", Code: "HR0004", Sex: "F", Active: true, Age: intp(23), Email: "liuyang@hand-china.com", StartDate: "2021-09-06"},
		{Name: "陈静", Code: "HR0005", Sex: "F", Active: true, Age: intp(31), Email: "chenjing@qq.com", StartDate: "2019-04-15"},
		{Name: "杨帆", Code: "HR0006", Active: true, Age: intp(17), Email: "yangfan@163.com", StartDate: "2023-07-10"},
		{Name: "赵磊", Code: "HR0007", Sex: "M", Active: false, Age: intp(52), Email: "zhaolei@hand-china.com", StartDate: "2008-01-02"},
		{Name: "黄丽", Code: "HR0008", Sex: "F", Active: true, Age: intp(39), Email: "huangli@qq.com", StartDate: "2014-05-19"},
		{Name: "周杰", Code: "HR0009", Sex: "M", Active: true, Age: intp(26), Email: "zhoujie@163.com", StartDate: "2020-02-24"},
		{Name: "吴敏", Code: "HR0010", Sex: "F", Active: true, Age: intp(44), Email: "wumin@hand-china.com", StartDate: "2012-08-30"},
		{Name: "Alice", Code: "HR0011", Sex: "F", Active: true, Age: intp(29), Email: "alice@qq.com", StartDate: "2022-03-01"},
		{Name: "Bob", Code: "HR0012", Active: false, Age: intp(16), StartDate: "2024-06-17"},
	}
}
